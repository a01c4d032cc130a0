package dataset

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/klauspost/compress/zstd"
	"github.com/neurobench/neurobench/pkg/types"
	"gonum.org/v1/gonum/mat"
)

// Subject archives (.nbz) are zstd streams holding a JSON header followed by
// raw little-endian float64 sample blocks, one block per run in header order.

var archiveMagic = [4]byte{'N', 'B', 'Z', '1'}

type archiveHeader struct {
	Subject  int              `json:"subject"`
	Channels []string         `json:"channels"`
	SFreq    float64          `json:"sfreq"`
	Sessions []archiveSession `json:"sessions"`
}

type archiveSession struct {
	Name string       `json:"name"`
	Runs []archiveRun `json:"runs"`
}

type archiveRun struct {
	Name     string        `json:"name"`
	NSamples int           `json:"n_samples"`
	Events   []types.Event `json:"events"`
}

// WriteArchive serializes one subject's recordings.
func WriteArchive(w io.Writer, subject int, data SubjectData) error {
	if len(data) == 0 {
		return fmt.Errorf("no sessions to archive for subject %d", subject)
	}

	// Header describes the block layout; sessions and runs are sorted so
	// the same data always produces the same archive.
	header := archiveHeader{Subject: subject}
	sessionNames := make([]string, 0, len(data))
	for name := range data {
		sessionNames = append(sessionNames, name)
	}
	sort.Strings(sessionNames)

	for _, sname := range sessionNames {
		runs := data[sname]
		runNames := make([]string, 0, len(runs))
		for name := range runs {
			runNames = append(runNames, name)
		}
		sort.Strings(runNames)

		sess := archiveSession{Name: sname}
		for _, rname := range runNames {
			raw := runs[rname]
			if header.Channels == nil {
				header.Channels = raw.Channels
				header.SFreq = raw.SFreq
			}
			if len(raw.Channels) != len(header.Channels) {
				return fmt.Errorf("inconsistent channel count in run %s/%s", sname, rname)
			}
			sess.Runs = append(sess.Runs, archiveRun{
				Name:     rname,
				NSamples: raw.NSamples(),
				Events:   raw.Events,
			})
		}
		header.Sessions = append(header.Sessions, sess)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal archive header: %w", err)
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}

	if _, err := zw.Write(archiveMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(zw, binary.LittleEndian, uint32(len(headerJSON))); err != nil {
		return err
	}
	if _, err := zw.Write(headerJSON); err != nil {
		return err
	}

	buf := make([]byte, 8)
	for _, sess := range header.Sessions {
		for _, run := range sess.Runs {
			raw := data[sess.Name][run.Name]
			for ch := 0; ch < len(header.Channels); ch++ {
				for t := 0; t < run.NSamples; t++ {
					binary.LittleEndian.PutUint64(buf, math.Float64bits(raw.Data.At(ch, t)))
					if _, err := zw.Write(buf); err != nil {
						return err
					}
				}
			}
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return nil
}

// ReadArchive deserializes a subject archive.
func ReadArchive(r io.Reader) (int, SubjectData, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to open zstd stream: %w", err)
	}
	defer zr.Close()

	var magic [4]byte
	if _, err := io.ReadFull(zr, magic[:]); err != nil {
		return 0, nil, fmt.Errorf("failed to read archive magic: %w", err)
	}
	if magic != archiveMagic {
		return 0, nil, fmt.Errorf("not a subject archive (bad magic %q)", magic[:])
	}

	var headerLen uint32
	if err := binary.Read(zr, binary.LittleEndian, &headerLen); err != nil {
		return 0, nil, fmt.Errorf("failed to read header length: %w", err)
	}

	headerJSON := make([]byte, headerLen)
	if _, err := io.ReadFull(zr, headerJSON); err != nil {
		return 0, nil, fmt.Errorf("failed to read header: %w", err)
	}

	var header archiveHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return 0, nil, fmt.Errorf("failed to parse header: %w", err)
	}

	nChan := len(header.Channels)
	data := make(SubjectData, len(header.Sessions))
	buf := make([]byte, 8)
	for _, sess := range header.Sessions {
		runs := make(map[string]*types.Raw, len(sess.Runs))
		for _, run := range sess.Runs {
			m := mat.NewDense(nChan, run.NSamples, nil)
			for ch := 0; ch < nChan; ch++ {
				for t := 0; t < run.NSamples; t++ {
					if _, err := io.ReadFull(zr, buf); err != nil {
						return 0, nil, fmt.Errorf("truncated sample block in %s/%s: %w", sess.Name, run.Name, err)
					}
					m.Set(ch, t, math.Float64frombits(binary.LittleEndian.Uint64(buf)))
				}
			}
			runs[run.Name] = &types.Raw{
				Channels: append([]string(nil), header.Channels...),
				SFreq:    header.SFreq,
				Data:     m,
				Events:   run.Events,
			}
		}
		data[sess.Name] = runs
	}

	return header.Subject, data, nil
}
