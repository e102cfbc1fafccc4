package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/user"
)

// --- UserStore ---------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	now := time.Now().UTC()
	if u.JoinedAt.IsZero() {
		u.JoinedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bitgpt_users (id, referrer_id, joined_at, program_binary, program_matrix, program_global)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, toNullString(u.ReferrerID), u.JoinedAt, u.ProgramFlags.Binary, u.ProgramFlags.Matrix, u.ProgramFlags.Global)
	if err != nil {
		return user.User{}, err
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO bitgpt_partner_graph (user_id, directs, directs_count_by_program)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, u.ID, jsonOrEmptyArray(nil), jsonOrEmptyObject(nil)); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, referrer_id, joined_at, program_binary, program_matrix, program_global
		FROM bitgpt_users
		WHERE id = $1
	`, userID)
	return scanUser(row)
}

func (s *Store) SetProgramFlag(ctx context.Context, userID string, p program.Program) (user.User, error) {
	column := programColumn(p)
	if column == "" {
		return user.User{}, sql.ErrNoRows
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE bitgpt_users SET `+column+` = true WHERE id = $1
	`, userID)
	if err != nil {
		return user.User{}, err
	}
	return s.GetUser(ctx, userID)
}

func (s *Store) GetPartnerGraph(ctx context.Context, userID string) (user.PartnerGraphNode, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, directs, directs_count_by_program
		FROM bitgpt_partner_graph
		WHERE user_id = $1
	`, userID)
	return scanPartnerGraph(row)
}

func (s *Store) AddDirect(ctx context.Context, referrerID, directID string) (user.PartnerGraphNode, error) {
	g, err := s.GetPartnerGraph(ctx, referrerID)
	if err != nil {
		if err == sql.ErrNoRows {
			g = user.NewPartnerGraphNode(referrerID)
		} else {
			return user.PartnerGraphNode{}, err
		}
	}
	g.Directs = append(g.Directs, directID)
	if err := s.upsertPartnerGraph(ctx, g); err != nil {
		return user.PartnerGraphNode{}, err
	}
	return g, nil
}

func (s *Store) IncrementDirectCount(ctx context.Context, userID string, p program.Program) (int, error) {
	g, err := s.GetPartnerGraph(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			g = user.NewPartnerGraphNode(userID)
		} else {
			return 0, err
		}
	}
	if g.DirectsCountByProgr == nil {
		g.DirectsCountByProgr = map[string]int{}
	}
	g.DirectsCountByProgr[string(p)]++
	if err := s.upsertPartnerGraph(ctx, g); err != nil {
		return 0, err
	}
	return g.DirectsCountByProgr[string(p)], nil
}

func (s *Store) upsertPartnerGraph(ctx context.Context, g user.PartnerGraphNode) error {
	directsJSON, err := json.Marshal(g.Directs)
	if err != nil {
		return err
	}
	countsJSON, err := json.Marshal(g.DirectsCountByProgr)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bitgpt_partner_graph (user_id, directs, directs_count_by_program)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET directs = EXCLUDED.directs, directs_count_by_program = EXCLUDED.directs_count_by_program
	`, g.UserID, directsJSON, countsJSON)
	return err
}

func programColumn(p program.Program) string {
	switch p {
	case program.Binary:
		return "program_binary"
	case program.Matrix:
		return "program_matrix"
	case program.Global:
		return "program_global"
	default:
		return ""
	}
}

func scanUser(scanner rowScanner) (user.User, error) {
	var (
		u          user.User
		referrerID sql.NullString
	)
	if err := scanner.Scan(&u.ID, &referrerID, &u.JoinedAt, &u.ProgramFlags.Binary, &u.ProgramFlags.Matrix, &u.ProgramFlags.Global); err != nil {
		return user.User{}, err
	}
	if referrerID.Valid {
		u.ReferrerID = referrerID.String
	}
	u.JoinedAt = u.JoinedAt.UTC()
	return u, nil
}

func scanPartnerGraph(scanner rowScanner) (user.PartnerGraphNode, error) {
	var (
		g          user.PartnerGraphNode
		directsRaw []byte
		countsRaw  []byte
	)
	if err := scanner.Scan(&g.UserID, &directsRaw, &countsRaw); err != nil {
		return user.PartnerGraphNode{}, err
	}
	g.Directs = []string{}
	g.DirectsCountByProgr = map[string]int{}
	if len(directsRaw) > 0 {
		_ = json.Unmarshal(directsRaw, &g.Directs)
	}
	if len(countsRaw) > 0 {
		_ = json.Unmarshal(countsRaw, &g.DirectsCountByProgr)
	}
	return g, nil
}

func jsonOrEmptyArray(v any) []byte {
	if v == nil {
		return []byte("[]")
	}
	b, _ := json.Marshal(v)
	return b
}

func jsonOrEmptyObject(v any) []byte {
	if v == nil {
		return []byte("{}")
	}
	b, _ := json.Marshal(v)
	return b
}
