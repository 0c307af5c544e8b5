package writer

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nethalo/dbdump/internal/dumpmodel"
)

// framer renders one row (already encoded per-column per its Encoding) as
// a line of output text, in the convention of one Dialect.
type framer interface {
	extension() string
	formatValue(v any) string
	formatRow(fields []string) string
}

func newFramer(d dumpmodel.Dialect) (framer, error) {
	switch d {
	case dumpmodel.DialectCSV:
		return delimitedFramer{delim: ',', ext: "csv"}, nil
	case dumpmodel.DialectTSV:
		return delimitedFramer{delim: '\t', ext: "tsv"}, nil
	case dumpmodel.DialectJSON:
		return jsonFramer{}, nil
	case dumpmodel.DialectCustom:
		return delimitedFramer{delim: 0x01, ext: "txt"}, nil
	default:
		return nil, fmt.Errorf("writer: unknown dialect %q", d)
	}
}

// delimitedFramer implements csv, tsv, and the mysqldump-style
// 0x01-delimited custom dialect: NULL renders as the literal backslash-N,
// and the delimiter, newline, and backslash are backslash-escaped.
type delimitedFramer struct {
	delim byte
	ext   string
}

func (f delimitedFramer) extension() string { return f.ext }

func (f delimitedFramer) formatValue(v any) string {
	if v == nil {
		return `\N`
	}
	s := toText(v)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case f.delim, '\n', '\r', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func (f delimitedFramer) formatRow(fields []string) string {
	return strings.Join(fields, string(f.delim)) + "\n"
}

// jsonFramer emits one JSON array-of-values row per line.
type jsonFramer struct{}

func (jsonFramer) extension() string { return "json" }

func (jsonFramer) formatValue(v any) string {
	if v == nil {
		return "null"
	}
	s := toText(v)
	b, _ := json.Marshal(s)
	return string(b)
}

func (jsonFramer) formatRow(fields []string) string {
	return "[" + strings.Join(fields, ",") + "]\n"
}

func toText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// encodeValue applies the column's chosen Encoding before framing.
func encodeValue(v any, enc dumpmodel.Encoding) any {
	if v == nil {
		return nil
	}
	var raw []byte
	switch t := v.(type) {
	case []byte:
		raw = t
	case string:
		raw = []byte(t)
	default:
		return v
	}
	switch enc {
	case dumpmodel.EncodingHex:
		return hex.EncodeToString(raw)
	case dumpmodel.EncodingBase64:
		return base64.StdEncoding.EncodeToString(raw)
	default:
		return v
	}
}
