package env

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Resolver substitutes {{name}} placeholders from captures, then variables.
// {{$NAME}} reads the process environment. It is safe for concurrent use.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]any
	captures  map[string]any
	logger    log.Logger
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]any),
		captures:  make(map[string]any),
	}
}

// SetLogger makes unresolved placeholders show up at debug level
func (r *Resolver) SetLogger(logger log.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

func (r *Resolver) debug(msg string, ctx ...any) {
	r.mu.RLock()
	logger := r.logger
	r.mu.RUnlock()
	if logger != nil {
		logger.Debug(msg, ctx...)
	}
}

func (r *Resolver) SetVariables(vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

// SetStrings is SetVariables for string maps such as run properties
func (r *Resolver) SetStrings(vars map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

// SetCapture stores a value under both "step.name" and "name"
func (r *Resolver) SetCapture(stepName, captureName string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stepName != "" {
		r.captures[stepName+"."+captureName] = value
	}
	r.captures[captureName] = value
}

func (r *Resolver) GetCapture(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.captures[name]
	return v, ok
}

func (r *Resolver) lookup(expr string) (string, bool) {
	if strings.HasPrefix(expr, "$") {
		if val, ok := os.LookupEnv(expr[1:]); ok {
			return val, true
		}
		return "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if val, ok := r.captures[expr]; ok {
		return fmt.Sprintf("%v", val), true
	}
	if val, ok := r.variables[expr]; ok {
		return fmt.Sprintf("%v", val), true
	}
	return "", false
}

// Resolve replaces every known placeholder in input. Unknown ones stay as written.
func (r *Resolver) Resolve(input string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		if val, ok := r.lookup(expr); ok {
			return val
		}
		r.debug("Unresolved variable", "name", expr)
		return match
	})
}

func (r *Resolver) ResolveAll(values map[string]string) map[string]string {
	result := make(map[string]string, len(values))
	for k, v := range values {
		result[k] = r.Resolve(v)
	}
	return result
}

// GetUnresolvedVariables lists placeholders in input that have no value, in order
func (r *Resolver) GetUnresolvedVariables(input string) []string {
	var missing []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		if _, ok := r.lookup(expr); !ok {
			missing = append(missing, expr)
		}
	}
	return missing
}

func (r *Resolver) HasUnresolvedVariables(input string) bool {
	return len(r.GetUnresolvedVariables(input)) > 0
}

func (r *Resolver) GetVariable(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.captures[name]; ok {
		return v, true
	}
	if v, ok := r.variables[name]; ok {
		return v, true
	}
	return nil, false
}

func (r *Resolver) Clone() *Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewResolver()
	clone.logger = r.logger
	for k, v := range r.variables {
		clone.variables[k] = v
	}
	for k, v := range r.captures {
		clone.captures[k] = v
	}
	return clone
}
