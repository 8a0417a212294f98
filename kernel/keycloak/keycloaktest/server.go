// Package keycloaktest fakes kc.sh and kcadm.sh on top of a runnertest.Recorder.
package keycloaktest

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/youwol/datamanager/kernel/runner"
	"github.com/youwol/datamanager/kernel/runner/runnertest"
)

type Component struct {
	Id         string              `json:"id"`
	Name       string              `json:"name"`
	ProviderId string              `json:"providerId"`
	ParentId   string              `json:"parentId,omitempty"`
	Config     map[string][]string `json:"config"`
}

type Client struct {
	Uuid         string
	ClientId     string
	Secret       string
	RedirectUris []string
}

// Server holds the state of a fake realm. Every field may be set before use.
type Server struct {
	mu         sync.Mutex
	RealmId    string
	Components []*Component
	Clients    []*Client
	Version    string
	// LoginFailures is the number of failing "config credentials" calls before success.
	LoginFailures int
	// Fail makes any call whose line contains the key exit with the value.
	Fail   map[string]int
	nextId int
}

func NewServer() *Server {
	s := &Server{RealmId: "realm-uuid", Version: "24.0.5", Fail: make(map[string]int)}
	for _, id := range []string{"admin-cli", "integration-tests", "youwol-platform", "webpm"} {
		s.Clients = append(s.Clients, &Client{Uuid: "uuid-" + id, ClientId: id, Secret: "initial"})
	}
	return s
}

// AddProvider registers an existing key provider.
func (s *Server) AddProvider(name, providerId, algorithm, priority string) *Component {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &Component{
		Id:         s.newId(),
		Name:       name,
		ProviderId: providerId,
		ParentId:   s.RealmId,
		Config: map[string][]string{
			"priority":  {priority},
			"algorithm": {algorithm},
			"active":    {"true"},
			"enabled":   {"true"},
		},
	}
	s.Components = append(s.Components, c)
	return c
}

// Recorder returns a recorder answering kc.sh and kcadm.sh calls from this server.
func (s *Server) Recorder() *runnertest.Recorder {
	return runnertest.NewRecorder(s.Respond)
}

func (s *Server) Component(id string) *Component {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.Components {
		if c.Id == id {
			return c
		}
	}
	return nil
}

func (s *Server) Client(clientId string) *Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.Clients {
		if c.ClientId == clientId {
			return c
		}
	}
	return nil
}

func (s *Server) Respond(inv runner.Invocation) runnertest.Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := strings.Join(append([]string{filepath.Base(inv.Executable)}, inv.Args...), " ")
	for fragment, code := range s.Fail {
		if strings.Contains(line, fragment) {
			return runnertest.Response{ExitCode: code}
		}
	}
	if filepath.Base(inv.Executable) != "kcadm.sh" || len(inv.Args) == 0 {
		return runnertest.Response{}
	}

	switch inv.Args[0] {
	case "config":
		if s.LoginFailures > 0 {
			s.LoginFailures--
			return runnertest.Response{ExitCode: 1, Stderr: "Failed to send request - Connection refused"}
		}
		return runnertest.Response{}
	case "get":
		return s.get(inv.Args[1:])
	case "update":
		return s.update(inv.Args[1], sets(inv.Args))
	case "create":
		return s.create(sets(inv.Args))
	case "delete":
		return s.remove(inv.Args[1])
	}
	return runnertest.Response{ExitCode: 1, Stderr: "unknown command"}
}

func (s *Server) get(args []string) runnertest.Response {
	switch {
	case args[0] == "realms/youwol":
		if s.RealmId == "" {
			return jsonResponse(map[string]string{})
		}
		return jsonResponse(map[string]string{"id": s.RealmId})
	case args[0] == "components":
		return jsonResponse(s.Components)
	case args[0] == "clients":
		clientId := query(args, "clientId")
		var result []map[string]string
		for _, c := range s.Clients {
			if strings.Contains(c.ClientId, clientId) {
				result = append(result, map[string]string{"id": c.Uuid, "clientId": c.ClientId})
			}
		}
		if result == nil {
			result = []map[string]string{}
		}
		return jsonResponse(result)
	case args[0] == "serverinfo":
		return jsonResponse(map[string]interface{}{"systemInfo": map[string]string{"version": s.Version}})
	}
	return runnertest.Response{ExitCode: 1, Stderr: "Resource not found"}
}

func (s *Server) update(target string, values map[string]string) runnertest.Response {
	switch {
	case strings.HasPrefix(target, "components/"):
		for _, c := range s.Components {
			if "components/"+c.Id == target {
				applyConfig(c, values)
				return runnertest.Response{}
			}
		}
	case strings.HasPrefix(target, "clients/"):
		for _, c := range s.Clients {
			if "clients/"+c.Uuid == target {
				if v, found := values["secret"]; found {
					c.Secret = v
				}
				if v, found := values["redirectUris"]; found {
					var uris []string
					if err := json.Unmarshal([]byte(v), &uris); err != nil {
						return runnertest.Response{ExitCode: 1, Stderr: err.Error()}
					}
					c.RedirectUris = uris
				}
				return runnertest.Response{}
			}
		}
	}
	return runnertest.Response{ExitCode: 1, Stderr: "Resource not found"}
}

func (s *Server) create(values map[string]string) runnertest.Response {
	c := &Component{
		Id:         s.newId(),
		Name:       values["name"],
		ProviderId: values["providerId"],
		ParentId:   values["parentId"],
		Config:     make(map[string][]string),
	}
	applyConfig(c, values)
	s.Components = append(s.Components, c)
	return runnertest.Response{Stdout: fmt.Sprintf("Created new component with id '%s'\n", c.Id)}
}

func (s *Server) remove(target string) runnertest.Response {
	for i, c := range s.Components {
		if "components/"+c.Id == target {
			s.Components = append(s.Components[:i], s.Components[i+1:]...)
			return runnertest.Response{}
		}
	}
	return runnertest.Response{ExitCode: 1, Stderr: "Resource not found"}
}

func (s *Server) newId() string {
	s.nextId++
	return fmt.Sprintf("component-%d", s.nextId)
}

func applyConfig(c *Component, values map[string]string) {
	for k, v := range values {
		if !strings.HasPrefix(k, "config.") {
			continue
		}
		var list []string
		if err := json.Unmarshal([]byte(v), &list); err != nil {
			list = []string{v}
		}
		c.Config[strings.TrimPrefix(k, "config.")] = list
	}
}

func sets(args []string) map[string]string {
	values := make(map[string]string)
	for i := 0; i+1 < len(args); i++ {
		if args[i] != "-s" {
			continue
		}
		if k, v, found := strings.Cut(args[i+1], "="); found {
			values[k] = v
		}
	}
	return values
}

func query(args []string, key string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "-q" && strings.HasPrefix(args[i+1], key+"=") {
			return strings.TrimPrefix(args[i+1], key+"=")
		}
	}
	return ""
}

func jsonResponse(v interface{}) runnertest.Response {
	data, err := json.Marshal(v)
	if err != nil {
		return runnertest.Response{ExitCode: 1, Stderr: err.Error()}
	}
	return runnertest.Response{Stdout: string(data)}
}
