package dbassert

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
)

// Snapshot holds table hashes taken before a call that must not write.
type Snapshot struct {
	h      *Helper
	tables []string
	hashes map[string]string
}

// Snapshot hashes every table. Duplicate names are hashed once.
func (h *Helper) Snapshot(ctx context.Context, tables ...string) (*Snapshot, error) {
	s := &Snapshot{h: h, hashes: make(map[string]string, len(tables))}
	for _, t := range tables {
		if _, seen := s.hashes[t]; seen {
			continue
		}
		sum, err := h.TableHash(ctx, t)
		if err != nil {
			return nil, err
		}
		s.tables = append(s.tables, t)
		s.hashes[t] = sum
	}
	return s, nil
}

// Tables returns the snapshotted tables in the order given.
func (s *Snapshot) Tables() []string {
	out := make([]string, len(s.tables))
	copy(out, s.tables)
	return out
}

// Hash returns the recorded hash of table, or "".
func (s *Snapshot) Hash(table string) string {
	return s.hashes[table]
}

// Changed re-hashes every table and returns those whose content differs,
// sorted by name.
func (s *Snapshot) Changed(ctx context.Context) ([]string, error) {
	var changed []string
	for _, t := range s.tables {
		sum, err := s.h.TableHash(ctx, t)
		if err != nil {
			return nil, err
		}
		if sum != s.hashes[t] {
			changed = append(changed, t)
		}
	}
	sort.Strings(changed)
	return changed, nil
}

// Verify is Changed as an error: ASSERT_003 with the changed tables under
// the "tables" detail.
func (s *Snapshot) Verify(ctx context.Context) error {
	changed, err := s.Changed(ctx)
	if err != nil {
		return err
	}
	if len(changed) == 0 {
		return nil
	}
	return sserr.Assertionf(sserr.CodeAssertionState,
		"dbassert: tables changed although no write was expected: %v", changed).
		WithDetail("tables", changed)
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	default:
		return 0, sserr.New(sserr.CodeInternalDatabase, fmt.Sprintf("dbassert: unexpected count type %T", v))
	}
}
