package panels

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/kychandar/hammer/ds"
	encodingregistry "github.com/kychandar/hammer/services/encodingRegistry"
	payloaddecoder "github.com/kychandar/hammer/services/payloadDecoder"
)

var ErrAlreadyConnected = errors.New("already connected")

type ConfigFile struct {
	Name string
	Path string
	Err  string
}

type SessionPanel struct {
	queue

	Files      []*ConfigFile
	Connected  bool
	Connecting bool
	Status     string

	// SessionID identifies the bridge currently owned, if any.
	SessionID uint64
	active    *ConfigFile
	nextID    uint64
}

func NewSessionPanel() *SessionPanel {
	return &SessionPanel{}
}

func (p *SessionPanel) AddFile(name, path string) *ConfigFile {
	f := &ConfigFile{Name: name, Path: path}
	p.Files = append(p.Files, f)
	return f
}

func (p *SessionPanel) RemoveFile(i int) {
	if i < 0 || i >= len(p.Files) {
		return
	}
	p.Files = slices.Delete(p.Files, i, i+1)
}

// Connect asks for a session from file i. An empty file list connects with
// the default session settings.
func (p *SessionPanel) Connect(i int) error {
	if p.Connected || p.Connecting {
		return ErrAlreadyConnected
	}

	path := ""
	p.active = nil
	if len(p.Files) > 0 {
		if i < 0 || i >= len(p.Files) {
			return fmt.Errorf("no config file at index %d", i)
		}
		p.active = p.Files[i]
		p.active.Err = ""
		path = p.active.Path
	}

	p.nextID++
	p.SessionID = p.nextID
	p.Connecting = true
	p.Status = "connecting"
	p.push(Connect{SessionID: p.SessionID, ConfigPath: path})
	return nil
}

func (p *SessionPanel) Disconnect() {
	if !p.Connected && !p.Connecting {
		return
	}
	p.Connected = false
	p.Connecting = false
	p.Status = "disconnected"
	p.push(Disconnect{})
}

func (p *SessionPanel) HandleOpened(ev ds.SessionOpened) {
	if ev.SessionID != p.SessionID {
		return
	}
	p.Connecting = false
	if !ev.OK() {
		p.Connected = false
		p.Status = ev.Err
		if p.active != nil {
			p.active.Err = ev.Err
		}
		return
	}
	p.Connected = true
	p.Status = "connected"
}

func (p *SessionPanel) HandleClosed(ev ds.SessionClosed) {
	if ev.SessionID != p.SessionID {
		return
	}
	p.Connected = false
	p.Connecting = false
	if p.Status == "connected" || p.Status == "connecting" {
		p.Status = "disconnected"
	}
}

// Preview decodes config file i as JSON5 for display.
func (p *SessionPanel) Preview(i int) payloaddecoder.Representation {
	if i < 0 || i >= len(p.Files) {
		return payloaddecoder.Error{Message: fmt.Sprintf("no config file at index %d", i)}
	}
	data, err := os.ReadFile(p.Files[i].Path)
	if err != nil {
		return payloaddecoder.Error{Message: err.Error()}
	}
	return payloaddecoder.Decode(ds.Encoding{ID: encodingregistry.TextJSON5}, data)
}

func (p *SessionPanel) Entries() []ds.ConfigFileEntry {
	out := make([]ds.ConfigFileEntry, 0, len(p.Files))
	for _, f := range p.Files {
		out = append(out, ds.ConfigFileEntry{Name: f.Name, Path: f.Path})
	}
	return out
}

func (p *SessionPanel) Load(entries []ds.ConfigFileEntry) {
	p.Files = nil
	for _, e := range entries {
		p.AddFile(e.Name, e.Path)
	}
}
