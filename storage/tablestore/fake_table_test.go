package tablestore

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
)

type fakeRow struct {
	props   map[string]any
	version int
}

// fakeTable mimics the subset of table semantics the store relies on.
type fakeTable struct {
	mu   sync.Mutex
	rows map[string]*fakeRow
	// staleUpdates makes the next n conditional updates fail with 412.
	staleUpdates int
}

func newFakeTable() *fakeTable {
	return &fakeTable{rows: map[string]*fakeRow{}}
}

func rowID(pk, rk string) string { return pk + "\x00" + rk }

func respErr(code int) error {
	return &azcore.ResponseError{StatusCode: code}
}

func decodeProps(raw []byte) (map[string]any, string, error) {
	props := map[string]any{}
	if err := sonic.Unmarshal(raw, &props); err != nil {
		return nil, "", err
	}
	pk, _ := props["PartitionKey"].(string)
	rk, _ := props["RowKey"].(string)
	return props, rowID(pk, rk), nil
}

func (f *fakeTable) GetEntity(ctx context.Context, pk, rk string, _ *aztables.GetEntityOptions) (aztables.GetEntityResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[rowID(pk, rk)]
	if !ok {
		return aztables.GetEntityResponse{}, respErr(404)
	}
	raw, err := sonic.Marshal(row.props)
	if err != nil {
		return aztables.GetEntityResponse{}, err
	}
	return aztables.GetEntityResponse{ETag: azcore.ETag(strconv.Itoa(row.version)), Value: raw}, nil
}

func (f *fakeTable) AddEntity(ctx context.Context, raw []byte, _ *aztables.AddEntityOptions) (aztables.AddEntityResponse, error) {
	props, id, err := decodeProps(raw)
	if err != nil {
		return aztables.AddEntityResponse{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; ok {
		return aztables.AddEntityResponse{}, respErr(409)
	}
	f.rows[id] = &fakeRow{props: props, version: 1}
	return aztables.AddEntityResponse{}, nil
}

func (f *fakeTable) UpdateEntity(ctx context.Context, raw []byte, o *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error) {
	props, id, err := decodeProps(raw)
	if err != nil {
		return aztables.UpdateEntityResponse{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return aztables.UpdateEntityResponse{}, respErr(404)
	}
	if o != nil && o.IfMatch != nil && *o.IfMatch != azcore.ETagAny {
		if f.staleUpdates > 0 {
			f.staleUpdates--
			row.version++
		}
		if string(*o.IfMatch) != strconv.Itoa(row.version) {
			return aztables.UpdateEntityResponse{}, respErr(412)
		}
	}
	if o != nil && o.UpdateMode == aztables.UpdateModeMerge {
		for k, v := range props {
			row.props[k] = v
		}
	} else {
		row.props = props
	}
	row.version++
	return aztables.UpdateEntityResponse{}, nil
}

func (f *fakeTable) UpsertEntity(ctx context.Context, raw []byte, _ *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error) {
	props, id, err := decodeProps(raw)
	if err != nil {
		return aztables.UpsertEntityResponse{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	version := 1
	if row, ok := f.rows[id]; ok {
		version = row.version + 1
	}
	f.rows[id] = &fakeRow{props: props, version: version}
	return aztables.UpsertEntityResponse{}, nil
}

func (f *fakeTable) DeleteEntity(ctx context.Context, pk, rk string, _ *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := rowID(pk, rk)
	if _, ok := f.rows[id]; !ok {
		return aztables.DeleteEntityResponse{}, respErr(404)
	}
	delete(f.rows, id)
	return aztables.DeleteEntityResponse{}, nil
}

// NewListEntitiesPager understands only "PartitionKey eq '<pk>'" filters.
func (f *fakeTable) NewListEntitiesPager(o *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse] {
	pk := ""
	if o != nil && o.Filter != nil {
		pk = strings.TrimSuffix(strings.TrimPrefix(*o.Filter, "PartitionKey eq '"), "'")
	}
	return runtime.NewPager(runtime.PagingHandler[aztables.ListEntitiesResponse]{
		More: func(aztables.ListEntitiesResponse) bool { return false },
		Fetcher: func(ctx context.Context, _ *aztables.ListEntitiesResponse) (aztables.ListEntitiesResponse, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			var resp aztables.ListEntitiesResponse
			for _, row := range f.rows {
				if pk != "" && row.props["PartitionKey"] != pk {
					continue
				}
				raw, err := sonic.Marshal(row.props)
				if err != nil {
					return resp, err
				}
				resp.Entities = append(resp.Entities, raw)
			}
			return resp, nil
		},
	})
}

func newTestStore() (*Store, *fakeTable) {
	tasks := newFakeTable()
	return &Store{boards: newFakeTable(), tasks: tasks, users: newFakeTable()}, tasks
}
