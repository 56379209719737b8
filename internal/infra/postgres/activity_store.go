package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"quiz-rank-service/internal/domain"

	"github.com/jackc/pgx/v4/pgxpool"
)

// ActivityStore reads the raw member/content/attempt records the
// activity-recording subsystem maintains. Read-only: this service never
// writes gameplay data.
type ActivityStore struct {
	pool *pgxpool.Pool
}

func NewActivityStore(pool *pgxpool.Pool) *ActivityStore {
	return &ActivityStore{pool: pool}
}

func (s *ActivityStore) ListMembers(ctx context.Context, groupID string) ([]domain.Member, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, team, role, display_name, exp, correct_total, attempt_total, cosmetics
		FROM members WHERE group_id=$1`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		m := domain.Member{GroupID: groupID}
		var cosmetics []byte
		if err := rows.Scan(&m.ID, &m.Team, &m.Role, &m.DisplayName, &m.Exp, &m.CorrectTotal, &m.AttemptTotal, &cosmetics); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		if len(cosmetics) > 0 {
			if err := json.Unmarshal(cosmetics, &m.Cosmetics); err != nil {
				return nil, fmt.Errorf("unmarshal cosmetics: %w", err)
			}
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *ActivityStore) ListContent(ctx context.Context, groupID string) ([]domain.ContentItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, author_id, question_count
		FROM content_items WHERE group_id=$1`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	defer rows.Close()

	var items []domain.ContentItem
	for rows.Next() {
		c := domain.ContentItem{GroupID: groupID}
		if err := rows.Scan(&c.ID, &c.AuthorID, &c.QuestionCount); err != nil {
			return nil, fmt.Errorf("scan content item: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (s *ActivityStore) ListAttempts(ctx context.Context, groupID string) ([]domain.AttemptRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.member_id, a.content_id, a.author_id, a.correct_count, a.attempt_count, a.is_revision
		FROM attempts a JOIN members m ON m.id = a.member_id
		WHERE m.group_id=$1`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.AttemptRecord
	for rows.Next() {
		var a domain.AttemptRecord
		if err := rows.Scan(&a.MemberID, &a.ContentID, &a.AuthorID, &a.CorrectCount, &a.AttemptCount, &a.IsRevision); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// ListTeams returns the group's declared team labels. Teams live on member
// rows plus a lightweight declaration table so an empty section still shows
// up in the standings.
func (s *ActivityStore) ListTeams(ctx context.Context, groupID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM teams WHERE group_id=$1 ORDER BY name`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var teams []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		teams = append(teams, name)
	}
	return teams, rows.Err()
}
