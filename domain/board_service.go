package domain

import (
	"context"
	"fmt"
)

// BoardService renders the board listing.
type BoardService struct{ st BoardStore }

func NewBoardService(st BoardStore) BoardService { return BoardService{st: st} }

// All returns every board with its tasks.
func (s BoardService) All(ctx context.Context) ([]BoardView, error) {
	boards, err := s.st.ListBoards(ctx)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	out := make([]BoardView, 0, len(boards))
	for _, b := range boards {
		out = append(out, newBoardView(b))
	}
	return out, nil
}
