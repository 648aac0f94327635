// Package coerce converts driver-native column values into the canonical
// text representation used in reports and CSV exports.
//
// Conversion is lossy by contract: SQL NULL and every decode failure become
// types.NullToken. A malformed geometry becomes types.GeometryInvalidToken so
// corrupt values can be told apart from absent ones.
package coerce

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/dbsmedya/gofanout/internal/types"
)

// Dialect selects the server-specific encoding of geometry values.
type Dialect int

const (
	// DialectPostgres decodes PostGIS EWKB (hex text or raw bytes).
	DialectPostgres Dialect = iota
	// DialectMySQL decodes MySQL's internal format: 4-byte SRID + WKB.
	DialectMySQL
)

// DialectFor maps an engine to its dialect.
func DialectFor(e types.Engine) Dialect {
	if e == types.EngineMySQL {
		return DialectMySQL
	}
	return DialectPostgres
}

// Tag is the normalized type family a column belongs to.
type Tag int

const (
	TagText Tag = iota
	TagInt16
	TagInt32
	TagInt64
	TagDecimal
	TagFloat32
	TagFloat64
	TagGeometry
)

func (t Tag) String() string {
	switch t {
	case TagInt16:
		return "int16"
	case TagInt32:
		return "int32"
	case TagInt64:
		return "int64"
	case TagDecimal:
		return "decimal"
	case TagFloat32:
		return "float32"
	case TagFloat64:
		return "float64"
	case TagGeometry:
		return "geometry"
	default:
		return "text"
	}
}

// rule maps a set of declared type names to a tag. Rules are evaluated in
// order; the first match wins and anything unmatched is text.
type rule struct {
	tag   Tag
	names []string
}

var rules = []rule{
	{TagInt16, []string{"INT2", "SMALLINT", "SMALLSERIAL", "TINYINT", "UNSIGNED TINYINT"}},
	{TagInt32, []string{"INT4", "INT", "INTEGER", "SERIAL", "MEDIUMINT", "UNSIGNED SMALLINT", "YEAR"}},
	{TagInt64, []string{"INT8", "BIGINT", "BIGSERIAL", "UNSIGNED MEDIUMINT", "UNSIGNED INT"}},
	{TagDecimal, []string{"NUMERIC", "DECIMAL", "UNSIGNED BIGINT"}},
	{TagFloat32, []string{"FLOAT4", "REAL", "FLOAT"}},
	{TagFloat64, []string{"FLOAT8", "DOUBLE PRECISION", "DOUBLE"}},
	{TagGeometry, []string{"GEOMETRY", "POINT", "LINESTRING", "POLYGON", "MULTIPOINT",
		"MULTILINESTRING", "MULTIPOLYGON", "GEOMETRYCOLLECTION"}},
}

var tagByName = func() map[string]Tag {
	m := make(map[string]Tag)
	for _, r := range rules {
		for _, n := range r.names {
			if _, seen := m[n]; !seen {
				m[n] = r.tag
			}
		}
	}
	return m
}()

// Normalize maps a declared driver type name to its tag.
func Normalize(typeName string) Tag {
	if tag, ok := tagByName[strings.ToUpper(strings.TrimSpace(typeName))]; ok {
		return tag
	}
	return TagText
}

// Coerce renders one column value as text. It never panics.
func Coerce(d Dialect, typeName string, value any) (out string) {
	defer func() {
		if recover() != nil {
			out = types.NullToken
		}
	}()

	if value == nil {
		return types.NullToken
	}

	var (
		s   string
		err error
	)
	switch tag := Normalize(typeName); tag {
	case TagInt16:
		s, err = formatInt(value, 16)
	case TagInt32:
		s, err = formatInt(value, 32)
	case TagInt64:
		s, err = formatInt(value, 64)
	case TagDecimal:
		s, err = formatDecimal(value)
	case TagFloat32:
		s, err = formatFloat(value, 32)
	case TagFloat64:
		s, err = formatFloat(value, 64)
	case TagGeometry:
		return formatGeometry(d, value)
	default:
		s, err = formatText(value)
	}
	if err != nil {
		return types.NullToken
	}
	return s
}

func formatInt(value any, bits int) (string, error) {
	var n int64
	switch v := value.(type) {
	case string:
		return parseIntText(v, bits)
	case []byte:
		return parseIntText(string(v), bits)
	case float32, float64:
		f := cast.ToFloat64(v)
		if f != math.Trunc(f) {
			return "", fmt.Errorf("non-integral value %v", f)
		}
		// 2^63 itself is not representable as int64
		if f < math.MinInt64 || f >= -math.MinInt64 {
			return "", fmt.Errorf("value %v overflows int64", f)
		}
		n = int64(f)
	default:
		var err error
		n, err = cast.ToInt64E(v)
		if err != nil {
			return "", err
		}
	}
	if bits < 64 {
		lim := int64(1) << (bits - 1)
		if n < -lim || n >= lim {
			return "", fmt.Errorf("value %d overflows int%d", n, bits)
		}
	}
	return strconv.FormatInt(n, 10), nil
}

func parseIntText(s string, bits int) (string, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, bits)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n, 10), nil
}

func formatDecimal(value any) (string, error) {
	switch v := value.(type) {
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return "", err
		}
		return d.String(), nil
	case []byte:
		return formatDecimal(string(v))
	case float32:
		return decimal.NewFromFloat32(v).String(), nil
	case float64:
		return decimal.NewFromFloat(v).String(), nil
	default:
		n, err := cast.ToInt64E(v)
		if err != nil {
			return "", err
		}
		return decimal.NewFromInt(n).String(), nil
	}
}

func formatFloat(value any, bits int) (string, error) {
	var f float64
	switch v := value.(type) {
	case string:
		return parseFloatText(v, bits)
	case []byte:
		return parseFloatText(string(v), bits)
	case float32:
		f = float64(v)
	case float64:
		f = v
	default:
		var err error
		f, err = cast.ToFloat64E(v)
		if err != nil {
			return "", err
		}
	}
	return strconv.FormatFloat(f, 'f', -1, bits), nil
}

func parseFloatText(s string, bits int) (string, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), bits)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(f, 'f', -1, bits), nil
}

func formatText(value any) (string, error) {
	switch v := value.(type) {
	case string:
		if !utf8.ValidString(v) {
			return "", fmt.Errorf("value is not valid UTF-8")
		}
		return v, nil
	case []byte:
		if !utf8.Valid(v) {
			return "", fmt.Errorf("value is not valid UTF-8")
		}
		return string(v), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	default:
		return cast.ToStringE(v)
	}
}

func formatGeometry(d Dialect, value any) string {
	var raw []byte
	switch v := value.(type) {
	case string:
		b, err := hex.DecodeString(strings.TrimSpace(v))
		if err != nil {
			return types.GeometryInvalidToken
		}
		raw = b
	case []byte:
		raw = maybeHex(v)
	default:
		return types.NullToken
	}

	var (
		g    geom.T
		srid int
		err  error
	)
	switch d {
	case DialectMySQL:
		if len(raw) < 5 {
			return types.GeometryInvalidToken
		}
		srid = int(binary.LittleEndian.Uint32(raw[:4]))
		g, err = wkb.Unmarshal(raw[4:])
	default:
		g, err = ewkb.Unmarshal(raw)
		if err == nil {
			srid = g.SRID()
		}
	}
	if err != nil || g == nil {
		return types.GeometryInvalidToken
	}

	text, err := wkt.Marshal(g)
	if err != nil {
		return types.GeometryInvalidToken
	}
	if srid != 0 {
		return "SRID=" + strconv.Itoa(srid) + ";" + text
	}
	return text
}

// maybeHex decodes b when it is hex text. Binary envelopes always carry a
// 0x00 or 0x01 byte early on, so they never parse as hex.
func maybeHex(b []byte) []byte {
	if len(b) == 0 || len(b)%2 != 0 {
		return b
	}
	decoded := make([]byte, hex.DecodedLen(len(b)))
	if _, err := hex.Decode(decoded, b); err != nil {
		return b
	}
	return decoded
}
