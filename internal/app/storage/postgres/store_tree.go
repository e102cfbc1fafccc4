package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/tree"
)

// --- TreeStore -------------------------------------------------------------------

func (s *Store) PlaceNode(ctx context.Context, n tree.Node) (tree.Node, error) {
	if n.PlacedAt.IsZero() {
		n.PlacedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bitgpt_tree_nodes (program, slot_no, generation, user_id, parent_id, position, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.Program, n.SlotNo, n.Generation, n.UserID, toNullString(n.ParentID), n.Position, n.PlacedAt)
	if err != nil {
		return tree.Node{}, err
	}
	return n, nil
}

func (s *Store) GetNode(ctx context.Context, p program.Program, slotNo, generation int, userID string) (tree.Node, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT program, slot_no, generation, user_id, parent_id, position, placed_at
		FROM bitgpt_tree_nodes
		WHERE program = $1 AND slot_no = $2 AND generation = $3 AND user_id = $4
	`, p, slotNo, generation, userID)

	n, err := scanNode(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return tree.Node{}, false, nil
		}
		return tree.Node{}, false, err
	}
	return n, true, nil
}

func (s *Store) Children(ctx context.Context, p program.Program, slotNo, generation int, parentID string) ([]tree.Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT program, slot_no, generation, user_id, parent_id, position, placed_at
		FROM bitgpt_tree_nodes
		WHERE program = $1 AND slot_no = $2 AND generation = $3 AND parent_id = $4
		ORDER BY position
	`, p, slotNo, generation, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

func (s *Store) NodesInGeneration(ctx context.Context, p program.Program, slotNo, generation int) ([]tree.Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT program, slot_no, generation, user_id, parent_id, position, placed_at
		FROM bitgpt_tree_nodes
		WHERE program = $1 AND slot_no = $2 AND generation = $3
		ORDER BY position
	`, p, slotNo, generation)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

func scanNode(scanner rowScanner) (tree.Node, error) {
	var (
		n        tree.Node
		parentID sql.NullString
	)
	if err := scanner.Scan(&n.Program, &n.SlotNo, &n.Generation, &n.UserID, &parentID, &n.Position, &n.PlacedAt); err != nil {
		return tree.Node{}, err
	}
	if parentID.Valid {
		n.ParentID = parentID.String
	}
	n.PlacedAt = n.PlacedAt.UTC()
	return n, nil
}

func scanNodes(rows *sql.Rows) ([]tree.Node, error) {
	var result []tree.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (s *Store) GetGeneration(ctx context.Context, p program.Program, slotNo int, ownerID string) (tree.Generation, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT program, slot_no, owner_id, gen_no, status, member_count
		FROM bitgpt_tree_generations
		WHERE program = $1 AND slot_no = $2 AND owner_id = $3
	`, p, slotNo, ownerID)

	var g tree.Generation
	if err := row.Scan(&g.Program, &g.SlotNo, &g.OwnerID, &g.GenNo, &g.Status, &g.MemberCount); err != nil {
		if err == sql.ErrNoRows {
			return tree.Generation{}, false, nil
		}
		return tree.Generation{}, false, err
	}
	return g, true, nil
}

func (s *Store) UpsertGeneration(ctx context.Context, g tree.Generation) (tree.Generation, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bitgpt_tree_generations (program, slot_no, owner_id, gen_no, status, member_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (program, slot_no, owner_id)
		DO UPDATE SET gen_no = EXCLUDED.gen_no, status = EXCLUDED.status, member_count = EXCLUDED.member_count
	`, g.Program, g.SlotNo, g.OwnerID, g.GenNo, g.Status, g.MemberCount)
	if err != nil {
		return tree.Generation{}, err
	}
	return g, nil
}
