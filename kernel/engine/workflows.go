package engine

import (
	"context"

	"github.com/youwol/datamanager/kernel/keycloak"
	"github.com/youwol/datamanager/kernel/model"
)

const (
	WorkflowExport     = "export"
	WorkflowImport     = "import"
	WorkflowCleanup    = "cleanup"
	WorkflowRotateKeys = "rotate-keys"
)

func init() {
	RegisterWorkflow(WorkflowExport, func() Workflow { return &ExportWorkflow{} })
	RegisterWorkflow(WorkflowImport, func() Workflow { return &ImportWorkflow{} })
	RegisterWorkflow(WorkflowCleanup, func() Workflow { return &CleanupWorkflow{} })
	RegisterWorkflow(WorkflowRotateKeys, func() Workflow { return &RotateKeysWorkflow{} })
}

// ExportWorkflow dumps the realm and its users into the export dir.
type ExportWorkflow struct{}

func (w *ExportWorkflow) Name() string {
	return WorkflowExport
}

func (w *ExportWorkflow) Execute(ctx context.Context, r *Run) error {
	if err := r.Enter(ctx, model.PhaseInit); err != nil {
		return err
	}
	if err := model.Require(model.EnvKeycloakExportDir, r.Config.Keycloak.ExportDir); err != nil {
		return err
	}
	if err := build(ctx, r); err != nil {
		return err
	}
	if err := r.Enter(ctx, model.PhaseExporting); err != nil {
		return err
	}
	if err := r.Dist.Export(ctx); err != nil {
		return err
	}
	return r.Enter(ctx, model.PhaseExported)
}

// ImportWorkflow loads the export dir, overwriting existing entities, then rotates keys and
// reconfigures the known clients.
type ImportWorkflow struct{}

func (w *ImportWorkflow) Name() string {
	return WorkflowImport
}

func (w *ImportWorkflow) Execute(ctx context.Context, r *Run) error {
	if err := r.Enter(ctx, model.PhaseInit); err != nil {
		return err
	}
	if err := model.Require(model.EnvKeycloakExportDir, r.Config.Keycloak.ExportDir); err != nil {
		return err
	}
	mode, err := model.ParseRotationMode(r.Config.Keycloak.RotateKeys)
	if err != nil {
		return err
	}
	creds, err := keycloak.Credentials(r.Config)
	if err != nil {
		return err
	}

	if err := build(ctx, r); err != nil {
		return err
	}
	if err := r.Enter(ctx, model.PhaseImporting); err != nil {
		return err
	}
	if err := r.Dist.Import(ctx); err != nil {
		return err
	}
	if err := r.Enter(ctx, model.PhaseImported); err != nil {
		return err
	}

	if mode != model.RotationNone {
		if err := r.Enter(ctx, model.PhaseRotatingKeys); err != nil {
			return err
		}
		if err := keycloak.NewKeyRotation(r.Admin).Rotate(ctx, mode); err != nil {
			return err
		}
	}

	if err := r.Enter(ctx, model.PhaseConfiguringClients); err != nil {
		return err
	}
	return keycloak.ConfigureClients(ctx, r.Admin, creds)
}

// CleanupWorkflow removes the previous export files and exports again.
type CleanupWorkflow struct{}

func (w *CleanupWorkflow) Name() string {
	return WorkflowCleanup
}

func (w *CleanupWorkflow) Execute(ctx context.Context, r *Run) error {
	if err := r.Enter(ctx, model.PhaseCleaning); err != nil {
		return err
	}
	if err := model.Require(model.EnvKeycloakExportDir, r.Config.Keycloak.ExportDir); err != nil {
		return err
	}
	removed, err := r.Dist.CleanExport()
	if err != nil {
		return err
	}
	r.Log().Infof("removed %d previous export file(s)", len(removed))

	if err := r.Enter(ctx, model.PhaseExporting); err != nil {
		return err
	}
	if err := r.Dist.Export(ctx); err != nil {
		return err
	}
	return r.Enter(ctx, model.PhaseExported)
}

// RotateKeysWorkflow rotates the signing keys of a running server.
type RotateKeysWorkflow struct{}

func (w *RotateKeysWorkflow) Name() string {
	return WorkflowRotateKeys
}

func (w *RotateKeysWorkflow) Execute(ctx context.Context, r *Run) error {
	if err := r.Enter(ctx, model.PhaseInit); err != nil {
		return err
	}
	mode, err := model.ParseRotationMode(r.Config.Keycloak.RotateKeys)
	if err != nil {
		return err
	}
	if mode == model.RotationNone {
		return model.NewConfigurationError(model.EnvKeycloakRotateKeys, "a rotation mode is required")
	}
	if err := r.Enter(ctx, model.PhaseRotatingKeys); err != nil {
		return err
	}
	return keycloak.NewKeyRotation(r.Admin).Rotate(ctx, mode)
}

// build produces the optimized distribution unless the image is already optimized.
func build(ctx context.Context, r *Run) error {
	if r.Config.Keycloak.Optimized {
		r.Log().Info("optimized image, skipping build")
		return nil
	}
	if err := r.Enter(ctx, model.PhaseBuilding); err != nil {
		return err
	}
	if err := r.Dist.Build(ctx); err != nil {
		return err
	}
	return r.Enter(ctx, model.PhaseBuild)
}
