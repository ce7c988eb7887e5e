// Package graphstore mirrors collaboration runs into Neo4j as
// (:Institution)-[:COLLABORATES_WITH]->(:Institution) relationships.
package graphstore

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog"

	"github.com/helixir/collab-graph-service/internal/domain"
)

// DefaultConnectTimeout bounds the initial connectivity check.
const DefaultConnectTimeout = 10 * time.Second

// Config holds Neo4j connection settings.
type Config struct {
	URI      string
	Username string
	Password string
	// Database is the target database; empty uses the server default.
	Database string
	// MaxPoolSize caps driver connections; zero keeps the driver default.
	MaxPoolSize int
}

// Store writes runs to Neo4j.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	logger   zerolog.Logger
}

// NewStore creates a driver and verifies connectivity.
func NewStore(ctx context.Context, cfg Config, logger zerolog.Logger) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j uri is required")
	}

	auth := neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		if cfg.MaxPoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.MaxPoolSize
		}
		c.SocketConnectTimeout = DefaultConnectTimeout
	})
	if err != nil {
		return nil, fmt.Errorf("init neo4j driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, DefaultConnectTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	return &Store{
		driver:   driver,
		database: cfg.Database,
		logger:   logger.With().Str("component", "graphstore").Logger(),
	}, nil
}

// Close shuts down the driver.
func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

// EnsureSchema creates the Institution id uniqueness constraint if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	res, err := session.Run(ctx, `CREATE CONSTRAINT institution_id_unique IF NOT EXISTS FOR (i:Institution) REQUIRE i.id IS UNIQUE`, nil)
	if err != nil {
		return fmt.Errorf("create institution constraint: %w", err)
	}
	_, err = res.Consume(ctx)
	return err
}

const mergeNodesCypher = `
UNWIND $nodes AS n
MERGE (i:Institution {id: n.id})
SET i.name = CASE WHEN n.name = '' THEN i.name ELSE n.name END,
    i.synced_at = n.synced_at
`

const mergeEdgesCypher = `
UNWIND $rels AS r
MATCH (a:Institution {id: r.a})
MATCH (b:Institution {id: r.b})
MERGE (a)-[e:COLLABORATES_WITH]->(b)
SET e.count = r.count,
    e.run_id = r.run_id,
    e.synced_at = r.synced_at
`

// WriteRun merges every institution and edge of report. Relationship
// properties are replaced by this run's values.
func (s *Store) WriteRun(ctx context.Context, report *domain.RunReport) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	nodes := nodeParams(report, now)
	rels := edgeParams(report, now)

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(nodes) > 0 {
			res, err := tx.Run(ctx, mergeNodesCypher, map[string]any{"nodes": nodes})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		if len(rels) > 0 {
			res, err := tx.Run(ctx, mergeEdgesCypher, map[string]any{"rels": rels})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j write run %s: %w", report.RunID, err)
	}

	s.logger.Debug().
		Int("nodes", len(nodes)).
		Int("relationships", len(rels)).
		Msg("graph synced")
	return nil
}

// nodeParams lists every institution seen in the roster statuses or as an
// edge endpoint, once, in first-seen order.
func nodeParams(report *domain.RunReport, syncedAt string) []map[string]any {
	seen := make(map[string]int)
	var nodes []map[string]any

	add := func(id, name string) {
		if id == "" {
			return
		}
		if i, ok := seen[id]; ok {
			if name != "" && nodes[i]["name"] == "" {
				nodes[i]["name"] = name
			}
			return
		}
		seen[id] = len(nodes)
		nodes = append(nodes, map[string]any{"id": id, "name": name, "synced_at": syncedAt})
	}

	for _, s := range report.Institutions {
		add(s.InstitutionID, s.Name)
	}
	for _, e := range report.Edges {
		add(e.InstitutionA, "")
		add(e.InstitutionB, "")
	}
	return nodes
}

func edgeParams(report *domain.RunReport, syncedAt string) []map[string]any {
	rels := make([]map[string]any, 0, len(report.Edges))
	for _, e := range report.Edges {
		rels = append(rels, map[string]any{
			"a":         e.InstitutionA,
			"b":         e.InstitutionB,
			"count":     int64(e.CollabCount),
			"run_id":    report.RunID.String(),
			"synced_at": syncedAt,
		})
	}
	return rels
}
