package keycloak

import (
	"context"
	"strings"
	"testing"

	"github.com/youwol/datamanager/kernel/keycloak/keycloaktest"
	"github.com/youwol/datamanager/kernel/model"
)

func TestKeyRotation_Rotate(t *testing.T) {
	srv := keycloaktest.NewServer()
	old1 := srv.AddProvider("rsa-generated", "rsa-generated", "RS256", "100")
	old2 := srv.AddProvider("hmac-generated", "hmac-generated", "HS256", "100")
	rec := srv.Recorder()
	r := NewKeyRotation(newTestAdmin(rec))

	if err := r.Rotate(context.Background(), model.RotationRotate); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if r.State != RotationStateDone {
		t.Errorf("expected state DONE, got %s", r.State)
	}

	for _, old := range []*keycloaktest.Component{old1, old2} {
		c := srv.Component(old.Id)
		if c == nil {
			t.Fatalf("provider '%s' must be kept on rotate", old.Id)
		}
		if c.Config["active"][0] != "false" || c.Config["priority"][0] != "-200" {
			t.Errorf("expected provider '%s' deactivated, got %v", old.Id, c.Config)
		}
	}

	if n := len(rec.Matching("kcadm.sh delete")); n != 0 {
		t.Errorf("expected no delete on rotate, got %d", n)
	}
	creates := rec.Matching("kcadm.sh create components")
	if len(creates) != 4 {
		t.Fatalf("expected 4 created providers, got %d", len(creates))
	}
	if len(srv.Components) != 6 {
		t.Errorf("expected 6 providers, got %d", len(srv.Components))
	}

	// every update happens before the first create
	lines := rec.Lines()
	lastUpdate, firstCreate := -1, -1
	for i, l := range lines {
		if strings.HasPrefix(l, "kcadm.sh update ") {
			lastUpdate = i
		}
		if firstCreate < 0 && strings.HasPrefix(l, "kcadm.sh create ") {
			firstCreate = i
		}
	}
	if lastUpdate > firstCreate {
		t.Error("expected deactivation to complete before insertion")
	}

	expected := map[string]struct {
		providerId string
		algorithm  string
		priority   string
	}{
		"rsa-generated":  {"rsa-generated", "RS256", "100"},
		"hmac-generated": {"hmac-generated", "HS256", "100"},
		"aes-generated":  {"aes-generated", "AES", "100"},
		"fallback-ES256": {"ecdsa-generated", "ES256", "-100"},
	}
	for _, c := range srv.Components[2:] {
		e, found := expected[c.Name]
		if !found {
			t.Errorf("unexpected provider '%s'", c.Name)
			continue
		}
		if c.ProviderId != e.providerId || c.Config["algorithm"][0] != e.algorithm || c.Config["priority"][0] != e.priority {
			t.Errorf("unexpected provider %+v", c)
		}
		if c.ParentId != "realm-uuid" {
			t.Errorf("expected parent 'realm-uuid', got '%s'", c.ParentId)
		}
	}
	if srv.Components[2].Config["keySize"][0] != "2048" {
		t.Error("expected rsa key size 2048")
	}
	if srv.Components[5].Config["ecdsaEllipticCurveKey"][0] != "P-256" {
		t.Error("expected ecdsa curve P-256")
	}
}

func TestKeyRotation_Reset(t *testing.T) {
	srv := keycloaktest.NewServer()
	srv.AddProvider("rsa-generated", "rsa-generated", "RS256", "100")
	srv.AddProvider("aes-generated", "aes-generated", "AES", "100")
	rec := srv.Recorder()
	r := NewKeyRotation(newTestAdmin(rec))

	if err := r.Rotate(context.Background(), model.RotationReset); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if n := len(rec.Matching("kcadm.sh delete components/")); n != 2 {
		t.Errorf("expected 2 deletes, got %d", n)
	}
	if n := len(rec.Matching("kcadm.sh update components/")); n != 0 {
		t.Errorf("expected no deactivation on reset, got %d", n)
	}
	if len(srv.Components) != 4 {
		t.Errorf("expected exactly the 4 new providers, got %d", len(srv.Components))
	}
}

func TestKeyRotation_InsertIsIdempotentOnName(t *testing.T) {
	srv := keycloaktest.NewServer()
	rec := srv.Recorder()
	r := NewKeyRotation(newTestAdmin(rec))
	ctx := context.Background()

	created, err := r.InsertNewKeys(ctx, "realm-uuid")
	if err != nil {
		t.Fatalf("InsertNewKeys failed: %v", err)
	}
	if created != 4 {
		t.Fatalf("expected 4 created, got %d", created)
	}

	created, err = r.InsertNewKeys(ctx, "realm-uuid")
	if err != nil {
		t.Fatalf("InsertNewKeys failed: %v", err)
	}
	if created != 0 {
		t.Errorf("expected nothing created on second insert, got %d", created)
	}
	if len(srv.Components) != 4 {
		t.Errorf("expected 4 providers, got %d", len(srv.Components))
	}
}

func TestKeyRotation_NoneDoesNothing(t *testing.T) {
	srv := keycloaktest.NewServer()
	rec := srv.Recorder()
	r := NewKeyRotation(newTestAdmin(rec))

	if err := r.Rotate(context.Background(), model.RotationNone); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if len(rec.Calls()) != 0 {
		t.Errorf("expected no call, got %v", rec.Lines())
	}
}

func TestKeyRotation_UnknownMode(t *testing.T) {
	srv := keycloaktest.NewServer()
	rec := srv.Recorder()
	r := NewKeyRotation(newTestAdmin(rec))

	err := r.Rotate(context.Background(), model.RotationMode("shuffle"))
	if !model.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if len(rec.Calls()) != 0 {
		t.Errorf("expected no call, got %v", rec.Lines())
	}
}

func TestKeyRotation_DeactivateFailureStopsBeforeInsert(t *testing.T) {
	srv := keycloaktest.NewServer()
	srv.AddProvider("rsa-generated", "rsa-generated", "RS256", "100")
	srv.Fail["kcadm.sh update components/"] = 1
	rec := srv.Recorder()
	r := NewKeyRotation(newTestAdmin(rec))

	err := r.Rotate(context.Background(), model.RotationRotate)
	if !model.IsExternalCommandError(err) {
		t.Fatalf("expected external command error, got %v", err)
	}
	if n := len(rec.Matching("kcadm.sh create")); n != 0 {
		t.Errorf("expected no insert after failure, got %d", n)
	}
	if r.State != RotationStateDeactivating {
		t.Errorf("expected state DEACTIVATING, got %s", r.State)
	}
}
