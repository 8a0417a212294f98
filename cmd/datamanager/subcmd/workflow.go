/*
	(c) Copyright YouWol

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package subcmd

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/youwol/datamanager/kernel/engine"
	"github.com/youwol/datamanager/kernel/loader"
	"github.com/youwol/datamanager/kernel/model"
	"github.com/youwol/datamanager/kernel/store"
)

const DefaultGrace = 30 * time.Second

func init() {
	RootCmd.AddCommand(NewWorkflowCommand(engine.WorkflowExport, "Build the Keycloak distribution and export the realm"))
	RootCmd.AddCommand(NewWorkflowCommand(engine.WorkflowImport, "Import the realm, rotate keys and configure clients"))
	RootCmd.AddCommand(NewWorkflowCommand(engine.WorkflowCleanup, "Remove the exported realm files"))
}

func NewWorkflowCommand(name, short string) *cobra.Command {
	workflowCmd := &WorkflowCommand{Workflow: name}

	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE:  workflowCmd.run,
	}

	workflowCmd.addFlags(cmd)
	cmd.Flags().DurationVar(&workflowCmd.Grace, "grace", DefaultGrace, "time allowed to wind down after a termination signal")

	return cmd
}

// WorkflowCommand runs one Keycloak workflow under the signal guard, tracking its phases in
// the status file.
type WorkflowCommand struct {
	CommonOptions
	Workflow string
	Grace    time.Duration
	// prepare adjusts the configuration before the run.
	prepare func(job *Job)
}

func (w *WorkflowCommand) run(cmd *cobra.Command, args []string) error {
	job, err := w.open()
	if err != nil {
		markFailed(w.ConfigPath)
		return err
	}
	defer job.Close()

	if w.prepare != nil {
		w.prepare(job)
	}
	return runWorkflow(cmd.Context(), job, w.Workflow, w.Grace)
}

// markFailed writes ERROR for a run that could not start, when the status file is known.
func markFailed(configPath string) {
	path := loader.StatusFile(configPath)
	if path == "" {
		return
	}
	if err := store.NewStatusFile(path, nil).SetPhase(model.PhaseError); err != nil {
		logrus.WithError(err).Error("unable to write ERROR status")
	}
}

func runWorkflow(ctx context.Context, job *Job, name string, grace time.Duration) error {
	workflow, err := engine.GetWorkflow(name)
	if err != nil {
		return err
	}
	run, err := job.Services.EngineRun()
	if err != nil {
		return err
	}

	guard := engine.NewGuard(run.Store, grace)
	ctx = guard.Watch(ctx)
	defer guard.Stop()

	return engine.NewOrchestrator(run).Execute(ctx, workflow)
}
