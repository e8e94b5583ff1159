// Package custodytest builds workflow dependencies on top of a seeded test
// database.
package custodytest

import (
	"sync"
	"testing"
	"time"

	"github.com/evmtrack/evmtrack/internal/auditlog"
	"github.com/evmtrack/evmtrack/internal/custody"
	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/errors"
	"github.com/evmtrack/evmtrack/internal/logger"
	"github.com/evmtrack/evmtrack/internal/report"
	"github.com/evmtrack/evmtrack/internal/testutil"
)

// Renderer records every document it is asked to render.
type Renderer struct {
	mu   sync.Mutex
	Docs []*report.Document
	Fail bool
}

// Render implements report.Renderer.
func (r *Renderer) Render(doc *report.Document) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Docs = append(r.Docs, doc)
	if r.Fail {
		return nil, errors.NewStd("renderer unavailable")
	}
	return []byte("%PDF-fake"), nil
}

// Last returns the most recently rendered document.
func (r *Renderer) Last() *report.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Docs) == 0 {
		return nil
	}
	return r.Docs[len(r.Docs)-1]
}

// Env is a seeded fixture with workflow dependencies.
type Env struct {
	*testutil.Fixture
	Deps     *custody.Deps
	Renderer *Renderer
}

// New seeds a fixture and builds dependencies with a recording renderer.
func New(t *testing.T) *Env {
	t.Helper()
	f := testutil.NewFixture(t)
	r := &Renderer{}
	log := logger.NewDiscard()
	return &Env{
		Fixture:  f,
		Renderer: r,
		Deps: &custody.Deps{
			Store:    f.Store,
			Audit:    auditlog.NewRecorder(f.Store.Audit, log, nil),
			Renderer: r,
			Names:    custody.NewNames(f.Store.Directory, time.Minute),
			Log:      log,
		},
	}
}

// Caller returns a caller for u.
func Caller(u entities.User) custody.Caller {
	return custody.Caller{UserID: u.ID, Role: u.Role}
}
