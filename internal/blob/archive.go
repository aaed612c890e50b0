package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"reefcore/pkg/domain"
)

// Format selects the encoding of archived reports.
type Format string

// Archive encodings.
const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// archiveTimeLayout is RFC 3339 with fixed-width nanoseconds so keys sort
// chronologically.
const archiveTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const reportsPrefix = "reports/"

// ErrNoArchive is returned when a record has no archived report.
var ErrNoArchive = errors.New("blob: no archived report")

// Archive stores immutable copies of validation reports under
// reports/<record-id>/<validated-at>.<format>.
type Archive struct {
	store  Store
	format Format
	keep   int
}

// ArchiveOption customises an Archive.
type ArchiveOption func(*Archive)

// WithRetention keeps only the newest n reports per record after each save.
// Zero or less keeps everything.
func WithRetention(n int) ArchiveOption {
	return func(a *Archive) { a.keep = n }
}

// NewArchive wraps store. An empty format means JSON.
func NewArchive(store Store, format Format, opts ...ArchiveOption) (*Archive, error) {
	if store == nil {
		return nil, fmt.Errorf("archive requires a blob store")
	}
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatMsgpack {
		return nil, fmt.Errorf("unknown archive format %q", format)
	}
	a := &Archive{store: store, format: format}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Format returns the encoding used for new archives.
func (a *Archive) Format() Format { return a.format }

// Key returns the blob key report is archived under for recordID.
func (a *Archive) Key(recordID string, report *domain.Report) string {
	stamp := report.ValidatedAt.UTC().Format(archiveTimeLayout)
	return recordPrefix(recordID) + stamp + "." + string(a.format)
}

// Save encodes report and stores it, then applies retention.
func (a *Archive) Save(ctx context.Context, recordID string, report *domain.Report) (Info, error) {
	if recordID == "" || strings.Contains(recordID, "/") {
		return Info{}, fmt.Errorf("invalid record id %q", recordID)
	}
	if report == nil {
		return Info{}, fmt.Errorf("archive %s: nil report", recordID)
	}
	body, contentType, err := encode(a.format, report)
	if err != nil {
		return Info{}, fmt.Errorf("encode report %s: %w", recordID, err)
	}
	info, err := a.store.Put(ctx, a.Key(recordID, report), bytes.NewReader(body), PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"record":         recordID,
			"overall_status": string(report.OverallStatus),
		},
	})
	if err != nil {
		return Info{}, err
	}
	if a.keep > 0 {
		if err := a.prune(ctx, recordID); err != nil {
			return info, fmt.Errorf("prune %s: %w", recordID, err)
		}
	}
	return info, nil
}

// History lists archived reports for recordID, oldest first.
func (a *Archive) History(ctx context.Context, recordID string) ([]Info, error) {
	return a.store.List(ctx, recordPrefix(recordID))
}

// Latest returns the most recently archived report for recordID.
func (a *Archive) Latest(ctx context.Context, recordID string) (*domain.Report, error) {
	infos, err := a.History(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("record %s: %w", recordID, ErrNoArchive)
	}
	return a.Load(ctx, infos[len(infos)-1].Key)
}

// Load decodes the archived report at key, choosing the codec by extension.
func (a *Archive) Load(ctx context.Context, key string) (*domain.Report, error) {
	_, rc, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	format := Format(strings.TrimPrefix(path.Ext(key), "."))
	report, err := decode(format, body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return report, nil
}

func (a *Archive) prune(ctx context.Context, recordID string) error {
	infos, err := a.History(ctx, recordID)
	if err != nil {
		return err
	}
	for i := 0; i < len(infos)-a.keep; i++ {
		if _, err := a.store.Delete(ctx, infos[i].Key); err != nil {
			return err
		}
	}
	return nil
}

func recordPrefix(recordID string) string {
	return reportsPrefix + recordID + "/"
}

func encode(format Format, report *domain.Report) ([]byte, string, error) {
	switch format {
	case FormatMsgpack:
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		enc.SetSortMapKeys(true)
		if err := enc.Encode(report); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "application/vnd.msgpack", nil
	default:
		b, err := json.Marshal(report)
		return b, "application/json", err
	}
}

func decode(format Format, body []byte) (*domain.Report, error) {
	var report domain.Report
	switch format {
	case FormatMsgpack:
		dec := msgpack.NewDecoder(bytes.NewReader(body))
		dec.SetCustomStructTag("json")
		dec.UseLooseInterfaceDecoding(true)
		if err := dec.Decode(&report); err != nil {
			return nil, err
		}
	case FormatJSON:
		if err := json.Unmarshal(body, &report); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown archive format %q", format)
	}
	return &report, nil
}
