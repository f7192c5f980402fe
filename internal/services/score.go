package services

import (
	"context"

	"github.com/google/uuid"
)

// Score weights. Pacts carry another person's trust, so they move the
// score harder than solo goals in both directions.
const (
	BaseScore = 75

	GoalCompletedDelta = 2
	GoalFailedDelta    = -1
	PactCompletedDelta = 10
	PactFailedDelta    = -5

	MinScore = 0
	MaxScore = 100
)

// ReliabilityScore folds a user's terminal history into a 0-100 score.
// A user with no history sits at BaseScore.
func ReliabilityScore(goalsCompleted, goalsFailed, pactsCompleted, pactsFailed int) int {
	score := BaseScore +
		goalsCompleted*GoalCompletedDelta +
		goalsFailed*GoalFailedDelta +
		pactsCompleted*PactCompletedDelta +
		pactsFailed*PactFailedDelta

	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// TerminalCounter is implemented by the pact and goal repositories.
type TerminalCounter interface {
	CountTerminal(ctx context.Context, userID uuid.UUID) (completed, failed int, err error)
}

type ScoreBreakdown struct {
	Score          int `json:"score"`
	GoalsCompleted int `json:"goals_completed"`
	GoalsFailed    int `json:"goals_failed"`
	PactsCompleted int `json:"pacts_completed"`
	PactsFailed    int `json:"pacts_failed"`
}

type ScoreService struct {
	pacts TerminalCounter
	goals TerminalCounter
}

func NewScoreService(pacts, goals TerminalCounter) *ScoreService {
	return &ScoreService{pacts: pacts, goals: goals}
}

func (s *ScoreService) Score(ctx context.Context, userID uuid.UUID) (*ScoreBreakdown, error) {
	pc, pf, err := s.pacts.CountTerminal(ctx, userID)
	if err != nil {
		return nil, err
	}
	gc, gf, err := s.goals.CountTerminal(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ScoreBreakdown{
		Score:          ReliabilityScore(gc, gf, pc, pf),
		GoalsCompleted: gc,
		GoalsFailed:    gf,
		PactsCompleted: pc,
		PactsFailed:    pf,
	}, nil
}
