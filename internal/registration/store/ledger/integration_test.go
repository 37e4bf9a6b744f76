//go:build integration

package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"registrar/pkg/testutil/containers"
)

func TestPostgresContract(t *testing.T) {
	pg := containers.GetManager().GetPostgres(t)
	suite.Run(t, &ContractSuite{
		newLedger: func() Ledger { return NewPostgres(pg.DB) },
		reset: func() {
			require.NoError(t, pg.TruncateTables(context.Background(), "registration_records"))
		},
	})
}

func TestRedisContract(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	suite.Run(t, &ContractSuite{
		newLedger: func() Ledger { return NewRedis(rc.Client) },
		reset: func() {
			require.NoError(t, rc.FlushAll(context.Background()))
		},
	})
}
