package simclient

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/okian/skinmate/internal/domain/failure"
	"github.com/okian/skinmate/internal/domain/model"
)

// ErrStreamEnded is returned when the progress stream closes before the
// end event. It is tagged as a network failure so Watch reconnects.
var ErrStreamEnded = errors.New("progress stream closed before the end event")

// readStream parses server-sent events until the "end" event.
func readStream(r io.Reader, onRecord func(model.ProgressRecord)) (model.ProgressRecord, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)

	var event, data string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "":
			if data == "" {
				continue
			}
			var rec model.ProgressRecord
			if err := json.Unmarshal([]byte(data), &rec); err != nil {
				return model.ProgressRecord{}, failure.Wrap(failure.KindServer, err)
			}
			if onRecord != nil {
				onRecord(rec)
			}
			if event == "end" {
				return rec, nil
			}
			event, data = "", ""
		}
	}
	if err := sc.Err(); err != nil {
		return model.ProgressRecord{}, err
	}
	return model.ProgressRecord{}, failure.Wrap(failure.KindNetwork, ErrStreamEnded)
}
