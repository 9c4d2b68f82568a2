package core

import (
	"errors"
	"sync"
)

// CommandHandler decodes its own arguments from the frame payload
type CommandHandler func(data *[]byte) error

// Command is one dictionary entry. Entries without a handler are responses
// the firmware sends to the host.
type Command struct {
	ID      uint16
	Name    string
	Format  string // parameters, e.g. "oid=%c value=%c"
	Handler CommandHandler
}

// Signature is the dictionary key: the name followed by its parameters
func (c *Command) Signature() string {
	if c.Format == "" {
		return c.Name
	}
	return c.Name + " " + c.Format
}

// IsResponse reports whether the entry flows from the MCU to the host
func (c *Command) IsResponse() bool {
	return c.Handler == nil
}

// ErrNotACommand is returned when the host sends the id of a response
var ErrNotACommand = errors.New("id names a response")

// CommandRegistry hands out ids in registration order. The host keys
// every message by these ids, so the order of the Init* calls is part of
// the firmware's wire format.
type CommandRegistry struct {
	mu      sync.RWMutex
	entries []*Command
	byName  map[string]uint16
}

var globalRegistry = NewCommandRegistry()

// NewCommandRegistry creates an empty registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{byName: make(map[string]uint16)}
}

// RegisterCommand adds a host -> MCU command to the global registry
func RegisterCommand(name string, format string, handler CommandHandler) uint16 {
	return globalRegistry.Register(name, format, handler)
}

// RegisterResponse adds an MCU -> host message to the global registry
func RegisterResponse(name string, format string) uint16 {
	return globalRegistry.Register(name, format, nil)
}

// Register adds an entry and returns its id. Registering a name twice
// returns the first id and keeps the first entry.
func (r *CommandRegistry) Register(name string, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byName[name]; ok {
		return id
	}
	id := uint16(len(r.entries))
	r.entries = append(r.entries, &Command{
		ID:      id,
		Name:    name,
		Format:  format,
		Handler: handler,
	})
	r.byName[name] = id
	return id
}

// GetCommand looks an entry up by id
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.entries) {
		return nil, false
	}
	return r.entries[id], true
}

// GetCommandByName looks an entry up by name
func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.entries[id], true
}

// Count returns the number of entries, commands and responses together
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Dispatch runs the handler registered for cmdID
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok {
		return errors.New("unknown command id " + itoa(int(cmdID)))
	}
	if cmd.IsResponse() {
		return ErrNotACommand
	}
	return cmd.Handler(data)
}

// GetCommandsAndResponses splits the entries by direction, keyed by
// signature, the way the dictionary reports them
func (r *CommandRegistry) GetCommandsAndResponses() (map[string]int, map[string]int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commands := make(map[string]int)
	responses := make(map[string]int)
	for _, cmd := range r.entries {
		if cmd.IsResponse() {
			responses[cmd.Signature()] = int(cmd.ID)
		} else {
			commands[cmd.Signature()] = int(cmd.ID)
		}
	}
	return commands, responses
}

// DispatchCommand dispatches through the global registry
func DispatchCommand(cmdID uint16, data *[]byte) error {
	return globalRegistry.Dispatch(cmdID, data)
}

// GetGlobalRegistry returns the registry the firmware commands live in
func GetGlobalRegistry() *CommandRegistry {
	return globalRegistry
}
