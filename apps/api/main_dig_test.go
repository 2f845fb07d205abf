package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/alama/core"
)

func Test_storageName(t *testing.T) {
	tests := []struct {
		name string
		db   core.DatabaseConfig
		want string
	}{
		{name: "in memory", db: core.DatabaseConfig{Engine: "postgres", InMemory: true}, want: "memory"},
		{name: "postgres", db: core.DatabaseConfig{Engine: "postgres", Host: "db", Port: "5432"}, want: "postgres@db:5432"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, storageName(&core.Config{Database: tt.db}))
		})
	}
}
