package tree

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/program"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/storage/memory"
)

func newTestService() *Service {
	svc := New(memory.New())
	return svc.WithClock(func() time.Time { return time.Unix(1700000000, 0) })
}

func TestPlaceBinaryFillsBFSOrder(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	// Binary fan-out is 2: root gets two children, then the third
	// placement must land under the first child (BFS, not DFS).
	_, err := svc.PlaceBinary(ctx, 1, "root", "a")
	require.NoError(t, err)
	_, err = svc.PlaceBinary(ctx, 1, "root", "b")
	require.NoError(t, err)
	nodeC, err := svc.PlaceBinary(ctx, 1, "root", "c")
	require.NoError(t, err)

	require.Equal(t, "a", nodeC.ParentID)
	require.Equal(t, 0, nodeC.Position)
}

func TestAncestorWalksUpExactDepth(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.PlaceBinary(ctx, 1, "root", "a")
	require.NoError(t, err)
	_, err = svc.PlaceBinary(ctx, 1, "root", "b")
	require.NoError(t, err)
	_, err = svc.PlaceBinary(ctx, 1, "root", "c")
	require.NoError(t, err)

	parent, ok, err := svc.Ancestor(ctx, program.Binary, 1, 0, "c", 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a", parent)

	_, ok, err = svc.Ancestor(ctx, program.Binary, 1, 0, "c", 5)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBFSIndexUnderAncestor(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.PlaceBinary(ctx, 1, "root", "a")
	require.NoError(t, err)
	_, err = svc.PlaceBinary(ctx, 1, "root", "b")
	require.NoError(t, err)

	idx, found, err := svc.BFSIndexUnderAncestor(ctx, program.Binary, 1, 0, "root", "b")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, idx)

	_, found, err = svc.BFSIndexUnderAncestor(ctx, program.Binary, 1, 0, "root", "nobody")
	require.NoError(t, err)
	require.False(t, found)
}

func TestGenerationCreatesFirstGenerationLazily(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	gen, err := svc.Generation(ctx, program.Matrix, 1, "owner")
	require.NoError(t, err)
	require.Equal(t, 1, gen.GenNo)

	gen, err = svc.IncrementGeneration(ctx, gen)
	require.NoError(t, err)
	require.Equal(t, 1, gen.MemberCount)

	again, err := svc.Generation(ctx, program.Matrix, 1, "owner")
	require.NoError(t, err)
	require.Equal(t, gen, again)
}

func TestSweepoverFindsFirstActiveAncestor(t *testing.T) {
	ctx := context.Background()

	referrerOf := func(ctx context.Context, userID string) (string, bool, error) {
		switch userID {
		case "child":
			return "parent", true, nil
		case "parent":
			return "grandparent", true, nil
		default:
			return "", false, nil
		}
	}
	isActive := func(ctx context.Context, userID string) (bool, error) {
		return userID == "grandparent", nil
	}

	root, err := Sweepover(ctx, "child", referrerOf, isActive, "mother")
	require.NoError(t, err)
	require.Equal(t, "grandparent", root)
}

func TestSweepoverFallsBackToMotherWhenExhausted(t *testing.T) {
	ctx := context.Background()

	referrerOf := func(ctx context.Context, userID string) (string, bool, error) {
		return "", false, nil
	}
	isActive := func(ctx context.Context, userID string) (bool, error) {
		return false, nil
	}

	root, err := Sweepover(ctx, "orphan", referrerOf, isActive, "mother")
	require.NoError(t, err)
	require.Equal(t, "mother", root)
}

func TestPlaceGlobalRespectsBranchFactor(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.PlaceGlobal(ctx, "root", "a", 0)
	require.NoError(t, err)
	_, err = svc.PlaceGlobal(ctx, "root", "b", 0)
	require.NoError(t, err)
	nodeC, err := svc.PlaceGlobal(ctx, "root", "c", 0)
	require.NoError(t, err)

	require.Equal(t, "a", nodeC.ParentID)
}
