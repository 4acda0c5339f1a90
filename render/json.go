package render

import (
	"encoding/json"
	"io"

	"github.com/iedon/gameping-agent/monitor"
)

type jsonLine struct {
	Snapshot *monitor.Snapshot `json:"snapshot,omitempty"`
	Status   string            `json:"status,omitempty"`
}

// JSON writes one object per report, suitable for piping into other tools
type JSON struct {
	w io.Writer
}

func NewJSON(w io.Writer) *JSON {
	return &JSON{w: w}
}

func (j *JSON) RenderSnapshot(s monitor.Snapshot) error {
	return j.write(jsonLine{Snapshot: &s})
}

func (j *JSON) RenderStatus(msg string) error {
	return j.write(jsonLine{Status: msg})
}

func (j *JSON) write(line jsonLine) error {
	data, err := json.Marshal(line)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = j.w.Write(data)
	return err
}
