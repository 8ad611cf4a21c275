package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/gridtable/pkg/gridtable"
	"github.com/ajitpratap0/gridtable/pkg/gridtable/memstore"
)

// TableSuite gives every test a fresh sample table built from SampleRows
// with AdvancedInfo.
type TableSuite struct {
	suite.Suite
	ctx    context.Context
	cancel context.CancelFunc

	Table   *gridtable.GridTable
	Store   *memstore.Store
	Builder *gridtable.Builder
	// Options are applied to every table the suite creates
	Options []gridtable.Option
}

// SetupSuite runs before all tests in the suite
func (s *TableSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
}

// TearDownSuite runs after all tests in the suite
func (s *TableSuite) TearDownSuite() {
	s.cancel()
}

// SetupTest rebuilds the sample table
func (s *TableSuite) SetupTest() {
	s.Table, s.Store = NewTable(s.T(), AdvancedInfo(s.T()), s.Options...)
	s.Builder = Rebuild(s.T(), s.Table, SampleRows())
}

// Context returns the suite context
func (s *TableSuite) Context() context.Context {
	return s.ctx
}
