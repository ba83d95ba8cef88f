package dbassert

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// HashRows returns the content hash of a result set: every row is encoded
// with its columns sorted by name, each row is digested, the digests are
// sorted and digested again. Row order does not matter; a duplicated row
// does.
func HashRows(rows []Row) string {
	digests := make([]string, len(rows))
	for i, r := range rows {
		digests[i] = rowDigest(r)
	}
	sort.Strings(digests)

	h := sha256.New()
	for _, d := range digests {
		h.Write([]byte(d))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func rowDigest(r Row) string {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	var b strings.Builder
	for _, c := range cols {
		b.WriteString(c)
		b.WriteByte('=')
		b.WriteString(canonical(r[c]))
		b.WriteByte(0x1f)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// canonical renders a column value. NULL is distinct from the empty
// string and from the text "NULL".
func canonical(v any) string {
	if valuer, ok := v.(driver.Valuer); ok {
		if dv, err := valuer.Value(); err == nil {
			v = dv
		}
	}
	switch x := v.(type) {
	case nil:
		return "\x00null"
	case []byte:
		return "s:" + string(x)
	case string:
		return "s:" + x
	case time.Time:
		return "t:" + x.UTC().Format(time.RFC3339Nano)
	case bool:
		return fmt.Sprintf("b:%t", x)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("n:%d", x)
	case float32, float64:
		return fmt.Sprintf("n:%v", x)
	default:
		return fmt.Sprintf("v:%v", x)
	}
}
