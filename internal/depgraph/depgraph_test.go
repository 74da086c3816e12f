package depgraph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agencyops/internal/domain"
)

func edge(parent, dependent string) domain.TaskDependency {
	return domain.TaskDependency{ParentTaskID: parent, DependentTaskID: dependent}
}

func TestDetectCycle_DAG(t *testing.T) {
	// a -> b -> d
	// a -> c -> d
	g := Build([]domain.TaskDependency{edge("a", "b"), edge("a", "c"), edge("b", "d"), edge("c", "d")})
	assert.Nil(t, g.DetectCycle())
	assert.Equal(t, []string{"b", "c"}, g.Adj["a"])
}

func TestDetectCycle_Cycle(t *testing.T) {
	g := Build([]domain.TaskDependency{edge("a", "b"), edge("b", "c"), edge("c", "a")})
	cycle := g.DetectCycle()
	require.NotNil(t, cycle)
	assert.Equal(t, cycle[0], cycle[len(cycle)-1])
	assert.Len(t, cycle, 4)
}

func TestBuild_CollapsesDuplicates(t *testing.T) {
	g := Build([]domain.TaskDependency{edge("a", "b"), edge("a", "b")})
	assert.Equal(t, []string{"b"}, g.Adj["a"])
}

func TestCheckEdge(t *testing.T) {
	existing := []domain.TaskDependency{edge("a", "b"), edge("b", "c")}

	assert.NoError(t, CheckEdge(existing, edge("a", "c")))
	assert.NoError(t, CheckEdge(nil, edge("x", "y")))

	err := CheckEdge(existing, edge("c", "a"))
	var cerr *CycleError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, []string{"a", "b", "c", "a"}, cerr.Path)
	assert.Contains(t, err.Error(), "a -> b -> c -> a")
}

func TestCheckEdge_SelfEdge(t *testing.T) {
	err := CheckEdge(nil, edge("a", "a"))
	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"a", "a"}, cerr.Path)
}
