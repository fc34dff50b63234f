// Package matching interprets free-text criteria and evaluates company
// records against them through a completion service.
package matching

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/company-qualifier/internal/model"
	"github.com/sells-group/company-qualifier/internal/normalize"
)

// Completer returns the raw completion text for a prompt pair.
// *completion.Client satisfies it.
type Completer interface {
	Call(ctx context.Context, system, user string) (string, error)
}

// ErrEmptyCriteria is returned by Interpret for blank criteria.
var ErrEmptyCriteria = eris.New("matching: criteria is empty")

// Interpreter turns criteria text into a CriteriaInfo. Results are cached
// for the life of the process by content hash, and concurrent misses for
// the same criteria share a single completion call. Failures are not
// cached.
type Interpreter struct {
	caller Completer

	mu    sync.RWMutex
	cache map[string]*model.CriteriaInfo
	group singleflight.Group
}

// NewInterpreter creates an Interpreter backed by caller.
func NewInterpreter(caller Completer) *Interpreter {
	return &Interpreter{
		caller: caller,
		cache:  make(map[string]*model.CriteriaInfo),
	}
}

// criteriaKey is the cache key of a criteria string.
func criteriaKey(criteria string) string {
	sum := sha256.Sum256([]byte(criteria))
	return hex.EncodeToString(sum[:])
}

// Cached returns the cached interpretation of criteria without calling
// out.
func (i *Interpreter) Cached(criteria string) (*model.CriteriaInfo, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	info, ok := i.cache[criteriaKey(criteria)]
	return info, ok
}

// Len reports the number of cached interpretations.
func (i *Interpreter) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.cache)
}

// Interpret returns the CriteriaInfo for criteria. The returned value is
// shared and must not be modified.
//
// The completion call runs detached from ctx so that one caller giving up
// does not fail the others waiting on the same criteria; ctx only bounds
// how long this caller waits.
func (i *Interpreter) Interpret(ctx context.Context, criteria string) (*model.CriteriaInfo, error) {
	if strings.TrimSpace(criteria) == "" {
		return nil, ErrEmptyCriteria
	}

	key := criteriaKey(criteria)
	if info, ok := i.Cached(criteria); ok {
		zap.L().Debug("matching: criteria cache hit", zap.String("key", key[:12]))
		return info, nil
	}

	ch := i.group.DoChan(key, func() (any, error) {
		if info, ok := i.Cached(criteria); ok {
			return info, nil
		}

		text, err := i.caller.Call(context.WithoutCancel(ctx), interpretSystemPrompt, interpretUserPrompt(criteria))
		if err != nil {
			return nil, eris.Wrap(err, "matching: interpret criteria")
		}

		parsed := normalize.Criteria(text)
		info := model.NewCriteriaInfo(parsed.Summary, parsed.RequiredFields)

		i.mu.Lock()
		i.cache[key] = info
		i.mu.Unlock()

		zap.L().Info("matching: criteria interpreted",
			zap.String("key", key[:12]),
			zap.Strings("required_fields", info.RequiredFields),
		)
		return info, nil
	})

	select {
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "matching: interpret criteria")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.CriteriaInfo), nil
	}
}
