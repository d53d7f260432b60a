package db

import (
	"context"
	"errors"
	"time"
)

// ErrDependencyCycle is returned when adding an edge would create a cycle
// in the dependency graph.
var ErrDependencyCycle = errors.New("db: dependency would create a cycle")

// AddDependency inserts a monitorID -> dependsOnID edge after verifying it
// does not close a cycle. The whole graph is small enough (monitor counts
// in the hundreds, not millions) that loading every edge and running a BFS
// is cheap compared to a recursive CTE, and it works identically on SQLite
// and Postgres.
func (s *Store) AddDependency(ctx context.Context, monitorID, dependsOnID string, at time.Time) error {
	if monitorID == dependsOnID {
		return ErrDependencyCycle
	}

	edges, err := s.allDependencyEdges(ctx)
	if err != nil {
		return err
	}
	edges[monitorID] = append(edges[monitorID], dependsOnID)
	if hasCycleFrom(edges, monitorID) {
		return ErrDependencyCycle
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO monitor_dependencies (monitor_id, depends_on_id, created_at) VALUES (?,?,?)
	`), monitorID, dependsOnID, at)
	return err
}

func (s *Store) RemoveDependency(ctx context.Context, monitorID, dependsOnID string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		DELETE FROM monitor_dependencies WHERE monitor_id=? AND depends_on_id=?
	`), monitorID, dependsOnID)
	if err != nil {
		return err
	}
	return mustAffectRow(res, ErrNotFound)
}

// DependenciesOf returns the set of monitor IDs that monitorID directly
// depends on.
func (s *Store) DependenciesOf(ctx context.Context, monitorID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind("SELECT depends_on_id FROM monitor_dependencies WHERE monitor_id=?"), monitorID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// DependentsOf returns the set of monitor IDs that directly depend on
// monitorID — used to re-evaluate suppression when monitorID recovers.
func (s *Store) DependentsOf(ctx context.Context, monitorID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind("SELECT monitor_id FROM monitor_dependencies WHERE depends_on_id=?"), monitorID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) allDependencyEdges(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT monitor_id, depends_on_id FROM monitor_dependencies")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	edges := make(map[string][]string)
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			return nil, err
		}
		edges[from] = append(edges[from], to)
	}
	return edges, rows.Err()
}

// hasCycleFrom reports whether start can reach itself by following edges —
// a plain BFS/DFS over the adjacency map built above.
func hasCycleFrom(edges map[string][]string, start string) bool {
	visited := make(map[string]bool)
	queue := append([]string{}, edges[start]...)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if node == start {
			return true
		}
		if visited[node] {
			continue
		}
		visited[node] = true
		queue = append(queue, edges[node]...)
	}
	return false
}
