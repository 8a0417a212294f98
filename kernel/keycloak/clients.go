package keycloak

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/youwol/datamanager/kernel/model"
)

// Credentials builds the credential of every known client from the configuration. Every
// secret is required; redirect URIs only apply to RedirectUrisClient.
func Credentials(cfg *model.Config) ([]model.ClientCredential, error) {
	var creds []model.ClientCredential
	for _, clientId := range model.KnownClients {
		secret := cfg.Keycloak.ClientSecrets[clientId]
		if err := model.Require(model.ClientSecretEnv(clientId), secret); err != nil {
			return nil, err
		}
		cred := model.ClientCredential{ClientId: clientId, Secret: secret}
		if clientId == model.RedirectUrisClient {
			if len(cfg.Keycloak.RedirectUris) == 0 {
				return nil, model.NewConfigurationError(model.EnvKeycloakRedirectUris, "not set or empty")
			}
			cred.RedirectUris = cfg.Keycloak.RedirectUris
		}
		creds = append(creds, cred)
	}
	return creds, nil
}

// ConfigureClients pushes secrets and redirect URIs to existing clients, in order.
func ConfigureClients(ctx context.Context, admin *Admin, creds []model.ClientCredential) error {
	for _, cred := range creds {
		uuid, err := admin.ClientUuid(ctx, cred.ClientId)
		if err != nil {
			return err
		}

		args := []string{
			"update", "clients/" + uuid,
			"-r", model.Realm,
			"-s", "secret=" + cred.Secret,
		}
		if len(cred.RedirectUris) > 0 {
			uris, err := json.Marshal(cred.RedirectUris)
			if err != nil {
				return errors.Wrapf(err, "unable to encode redirect uris of '%s'", cred.ClientId)
			}
			args = append(args, "-s", "redirectUris="+string(uris))
		}

		if err := admin.Do(ctx, []string{cred.Secret}, args...); err != nil {
			return errors.Wrapf(err, "unable to configure client '%s'", cred.ClientId)
		}
		logrus.Infof("configured client '%s'", cred.ClientId)
	}
	return nil
}
