package registry

import (
	"context"
	"fmt"

	"github.com/olereon/automaton/internal/autoerr"
	"github.com/olereon/automaton/internal/browser"
	"github.com/olereon/automaton/internal/genmanager"
	"github.com/olereon/automaton/internal/models"
)

func init() {
	Register(models.StartGenerationDownloads, startGenerationDownloadsHandler{})
}

// START_GENERATION_DOWNLOADS(value: full manager config, §4.7) HANDS OFF TO
// THE GENERATION-DOWNLOAD MANAGER AND BLOCKS UNTIL IT REACHES A TERMINAL
// STATE. THE MANAGER'S downloads_completed AND TERMINAL STATE ARE STASHED
// INTO VARIABLES SO A SUBSEQUENT IF/LOG_MESSAGE CAN INSPECT THE OUTCOME.

type startGenerationDownloadsHandler struct{}

func (startGenerationDownloadsHandler) InputSchema() map[string]string {
	return map[string]string{"value": "object — see genmanager.Config"}
}

func (startGenerationDownloadsHandler) Validate(a models.Action) error {
	if _, err := genmanager.ParseConfig(a.Value); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidValue, err)
	}
	return nil
}

func (startGenerationDownloadsHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	cfg, err := genmanager.ParseConfig(a.Value)
	if err != nil {
		return autoerr.New(autoerr.KindMalformed, err.Error())
	}

	mgr, err := genmanager.NewManager(cfg, drv)
	if err != nil {
		return autoerr.New(autoerr.KindInternal, err.Error())
	}

	state, err := mgr.Run(ctx)
	ectx.SetVariable("downloads_completed", state.DownloadsCompleted)
	ectx.SetVariable("manager_terminal_state", state.TerminalState)
	if err != nil {
		return autoerr.New(autoerr.KindInternal, err.Error()).WithMetadata("terminalState", state.TerminalState)
	}
	if state.TerminalState == models.DoneError {
		return autoerr.New(autoerr.KindInternal, "generation-download manager reported DONE_ERROR")
	}
	return nil
}
