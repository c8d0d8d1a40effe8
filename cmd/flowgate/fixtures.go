package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"

	"github.com/flowgate/flowgate/pkg/domain"
)

// fixtureFile declares agents, their allowed catalogs and the credential
// table the CLI resolves against. Production deployments replace both
// with live CatalogProvider and CredentialResolver implementations.
type fixtureFile struct {
	Agents map[string]struct {
		OperationKinds []string            `yaml:"operationKinds"`
		APIs           map[string][]string `yaml:"apis"`
		Credentials    []struct {
			ID   string `yaml:"id"`
			Type string `yaml:"type"`
		} `yaml:"credentials"`
	} `yaml:"agents"`
	Credentials map[string]struct {
		Value string `yaml:"value"`
		Type  string `yaml:"type"`
	} `yaml:"credentials"`
}

type fixtures struct {
	provider domain.CatalogProvider
	resolver domain.CredentialResolver
}

// loadFixtures reads the fixture file, or builds a permissive single
// agent catalog when no file is given.
func loadFixtures(path, agentID string) (*fixtures, error) {
	if path == "" {
		return defaultFixtures(agentID), nil
	}

	// #nosec G304 -- path is operator-supplied
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}

	catalogs := make(map[string]*domain.AllowedCatalog, len(file.Agents))
	for id, agent := range file.Agents {
		cat := &domain.AllowedCatalog{
			OperationKinds: make(map[string]bool, len(agent.OperationKinds)),
			APIs:           agent.APIs,
		}
		for _, kind := range agent.OperationKinds {
			cat.OperationKinds[kind] = true
		}
		for _, cred := range agent.Credentials {
			cat.Credentials = append(cat.Credentials, domain.CredentialSpec{ID: cred.ID, Type: cred.Type})
		}
		catalogs[id] = cat
	}

	creds := make(map[string]struct {
		Value string
		Type  string
	}, len(file.Credentials))
	for id, cred := range file.Credentials {
		creds[id] = struct {
			Value string
			Type  string
		}{Value: cred.Value, Type: cred.Type}
	}

	return &fixtures{
		provider: &domain.StaticCatalogProvider{Catalogs: catalogs},
		resolver: &domain.StaticCredentialResolver{Credentials: creds},
	}, nil
}

// defaultFixtures allows every built-in kind and any host, with no
// credentials. Useful for local experimentation only.
func defaultFixtures(agentID string) *fixtures {
	kinds := map[string]bool{
		"ApiCall": true, "FilterData": true, "TransformData": true,
		"Conditional": true, "Loop": true, "StoreData": true,
		"Wait": true, "MergeData": true,
	}
	return &fixtures{
		provider: &domain.StaticCatalogProvider{Catalogs: map[string]*domain.AllowedCatalog{
			agentID: {OperationKinds: kinds, APIs: map[string][]string{"*": nil}},
		}},
		resolver: &domain.StaticCredentialResolver{},
	}
}

func newPGPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}
