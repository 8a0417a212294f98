package keycloak

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/youwol/datamanager/kernel/model"
)

type RotationState string

const (
	RotationStateNone         RotationState = "NONE"
	RotationStateDeactivating RotationState = "DEACTIVATING"
	RotationStateDeleting     RotationState = "DELETING"
	RotationStateInserting    RotationState = "INSERTING"
	RotationStateDone         RotationState = "DONE"
)

// KeyRotation replaces the signing-key providers of the realm.
type KeyRotation struct {
	Admin *Admin
	State RotationState
	// retired holds the ids deactivated by this rotation; a provider listed here does not
	// count as an already inserted key.
	retired map[string]bool
}

func NewKeyRotation(admin *Admin) *KeyRotation {
	return &KeyRotation{Admin: admin, State: RotationStateNone, retired: make(map[string]bool)}
}

// component is the kcadm representation of a key provider.
type component struct {
	Id         string              `json:"id"`
	Name       string              `json:"name"`
	ProviderId string              `json:"providerId"`
	Config     map[string][]string `json:"config"`
}

func (c component) value(key string) string {
	if v := c.Config[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func (c component) provider() model.KeyProvider {
	priority, _ := strconv.Atoi(c.value("priority"))
	return model.KeyProvider{
		Id:         c.Id,
		Name:       c.Name,
		ProviderId: c.ProviderId,
		Algorithm:  c.value("algorithm"),
		Priority:   priority,
		Active:     c.value("active") != "false",
		Enabled:    c.value("enabled") != "false",
	}
}

func (r *KeyRotation) ListProviders(ctx context.Context) ([]model.KeyProvider, error) {
	out, err := r.Admin.Get(ctx, "components", "-r", model.Realm, "-q", "type="+model.KeyProviderType)
	if err != nil {
		return nil, err
	}
	var components []component
	if err := json.Unmarshal(out, &components); err != nil {
		return nil, errors.Wrap(err, "unable to parse key providers")
	}
	providers := make([]model.KeyProvider, 0, len(components))
	for _, c := range components {
		providers = append(providers, c.provider())
	}
	return providers, nil
}

// Deactivate keeps the providers for verification only.
func (r *KeyRotation) Deactivate(ctx context.Context, providers []model.KeyProvider) error {
	for _, p := range providers {
		if err := r.Admin.Do(ctx, nil,
			"update", "components/"+p.Id,
			"-r", model.Realm,
			"-s", `config.active=["false"]`,
			"-s", fmt.Sprintf(`config.priority=["%d"]`, model.RetiredPriority),
		); err != nil {
			return errors.Wrapf(err, "unable to deactivate key provider '%s' (%s)", p.Name, p.Id)
		}
		r.retired[p.Id] = true
		logrus.Infof("deactivated key provider '%s' (%s)", p.Name, p.Id)
	}
	return nil
}

// Delete removes the providers; tokens signed with them no longer verify.
func (r *KeyRotation) Delete(ctx context.Context, providers []model.KeyProvider) error {
	for _, p := range providers {
		if err := r.Admin.Do(ctx, nil, "delete", "components/"+p.Id, "-r", model.Realm); err != nil {
			return errors.Wrapf(err, "unable to delete key provider '%s' (%s)", p.Name, p.Id)
		}
		logrus.Infof("deleted key provider '%s' (%s)", p.Name, p.Id)
	}
	return nil
}

// InsertNewKeys creates the fixed providers. A provider whose name is already present and was
// not retired by this rotation is left alone.
func (r *KeyRotation) InsertNewKeys(ctx context.Context, realmId string) (int, error) {
	existing, err := r.ListProviders(ctx)
	if err != nil {
		return 0, err
	}
	present := make(map[string]bool)
	for _, p := range existing {
		if !r.retired[p.Id] {
			present[p.Name] = true
		}
	}

	created := 0
	for _, spec := range model.NewKeySpecs {
		if present[spec.Name] {
			logrus.Infof("key provider '%s' already present, skipping", spec.Name)
			continue
		}
		if err := r.Admin.Do(ctx, nil, createArgs(realmId, spec)...); err != nil {
			return created, errors.Wrapf(err, "unable to create key provider '%s'", spec.Name)
		}
		created++
		logrus.Infof("created key provider '%s' (%s, priority %d)", spec.Name, spec.Algorithm, spec.Priority)
	}
	return created, nil
}

// Rotate runs the rotation for mode. RotationNone does nothing.
func (r *KeyRotation) Rotate(ctx context.Context, mode model.RotationMode) error {
	if mode == model.RotationNone {
		return nil
	}
	if mode != model.RotationRotate && mode != model.RotationReset {
		return model.NewConfigurationError(model.EnvKeycloakRotateKeys, "unrecognized key rotation mode '%s'", mode)
	}

	realmId, err := r.Admin.RealmId(ctx)
	if err != nil {
		return err
	}
	providers, err := r.ListProviders(ctx)
	if err != nil {
		return err
	}

	if mode == model.RotationRotate {
		r.State = RotationStateDeactivating
		err = r.Deactivate(ctx, providers)
	} else {
		r.State = RotationStateDeleting
		err = r.Delete(ctx, providers)
	}
	if err != nil {
		return err
	}

	r.State = RotationStateInserting
	if _, err := r.InsertNewKeys(ctx, realmId); err != nil {
		return err
	}
	r.State = RotationStateDone
	return nil
}

func createArgs(realmId string, spec model.KeySpec) []string {
	args := []string{
		"create", "components",
		"-r", model.Realm,
		"-s", "name=" + spec.Name,
		"-s", "providerId=" + spec.ProviderId,
		"-s", "providerType=" + model.KeyProviderType,
		"-s", "parentId=" + realmId,
		"-s", fmt.Sprintf(`config.priority=["%d"]`, spec.Priority),
		"-s", fmt.Sprintf(`config.algorithm=["%s"]`, spec.Algorithm),
		"-s", `config.enabled=["true"]`,
		"-s", `config.active=["true"]`,
	}
	keys := make([]string, 0, len(spec.Config))
	for k := range spec.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-s", fmt.Sprintf(`config.%s=["%s"]`, k, spec.Config[k]))
	}
	return args
}
