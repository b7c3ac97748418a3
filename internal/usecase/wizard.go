package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentmap/dashboard/internal/domain"
	"go.uber.org/zap"
)

// WizardStep is a step of the registration wizard.
type WizardStep int

const (
	StepIdentity WizardStep = iota
	StepDetails
	StepSubmitted
)

// wizardSteps is the number of editable steps before submission.
const wizardSteps = 2

func (s WizardStep) String() string {
	switch s {
	case StepIdentity:
		return "identity"
	case StepDetails:
		return "details"
	case StepSubmitted:
		return "submitted"
	}
	return "unknown"
}

// States are the state options offered by the registration form.
var States = []string{
	"Andhra Pradesh", "Assam", "Bihar", "Chhattisgarh", "Delhi", "Goa",
	"Gujarat", "Haryana", "Himachal Pradesh", "Jharkhand", "Karnataka",
	"Kerala", "Madhya Pradesh", "Maharashtra", "Manipur", "Meghalaya",
	"Mizoram", "Nagaland", "Odisha", "Punjab", "Rajasthan", "Sikkim",
	"Tamil Nadu", "Telangana", "Tripura", "Uttar Pradesh", "Uttarakhand",
	"West Bengal",
}

// LanguageOption is a preferred-language choice on the registration form.
type LanguageOption struct {
	Code  string `json:"code" yaml:"code"`
	Label string `json:"label" yaml:"label"`
}

// RegistrationLanguages are the language options offered by the registration form.
var RegistrationLanguages = []LanguageOption{
	{Code: "en", Label: "English"},
	{Code: "hi", Label: "Hindi"},
	{Code: "ta", Label: "Tamil"},
	{Code: "te", Label: "Telugu"},
	{Code: "kn", Label: "Kannada"},
}

// Wizard is the linear registration flow: identity, then details, then a
// terminal submitted state. Field values are forwarded without local checks.
type Wizard struct {
	mu         sync.Mutex
	client     domain.AgentMapClient
	log        *zap.Logger
	step       WizardStep
	form       domain.MSERegistration
	submitting bool
	err        string
	mseID      int64
}

// WizardSnapshot is a read-only copy of the wizard state.
type WizardSnapshot struct {
	Step       WizardStep             `json:"step" yaml:"step"`
	StepName   string                 `json:"step_name" yaml:"step_name"`
	Form       domain.MSERegistration `json:"form" yaml:"form"`
	Submitting bool                   `json:"submitting" yaml:"submitting"`
	Error      string                 `json:"error,omitempty" yaml:"error,omitempty"`
	MSEID      int64                  `json:"mse_id,omitempty" yaml:"mse_id,omitempty"`
}

// NewWizard creates a wizard at StepIdentity with the language preset to English.
func NewWizard(client domain.AgentMapClient, log *zap.Logger) *Wizard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Wizard{
		client: client,
		log:    log,
		form:   domain.MSERegistration{Language: "en"},
	}
}

// Snapshot returns the current state.
func (w *Wizard) Snapshot() WizardSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WizardSnapshot{
		Step:       w.step,
		StepName:   w.step.String(),
		Form:       w.form,
		Submitting: w.submitting,
		Error:      w.err,
		MSEID:      w.mseID,
	}
}

// Step returns the current step.
func (w *Wizard) Step() WizardStep {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Update edits the form. It is rejected once the wizard has submitted.
func (w *Wizard) Update(fn func(*domain.MSERegistration)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepSubmitted || w.submitting {
		return fmt.Errorf("%w: cannot edit in step %s", domain.ErrWizardStep, w.step)
	}
	fn(&w.form)
	return nil
}

// Next advances one step, stopping at the last editable step.
func (w *Wizard) Next() WizardStep {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step < wizardSteps-1 {
		w.step++
	}
	return w.step
}

// Back returns one step, stopping at the first step. It has no effect once
// the wizard has submitted.
func (w *Wizard) Back() WizardStep {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step > StepIdentity && w.step != StepSubmitted {
		w.step--
	}
	return w.step
}

// Submit registers the MSE. It is only allowed from the last editable step.
// On failure the wizard stays on that step carrying the error message; the
// next attempt clears it.
func (w *Wizard) Submit(ctx context.Context) (*domain.MSE, error) {
	w.mu.Lock()
	if w.step != wizardSteps-1 || w.submitting {
		step := w.step
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot submit from step %s", domain.ErrWizardStep, step)
	}
	w.submitting = true
	w.err = ""
	form := w.form
	w.mu.Unlock()

	mse, err := w.client.RegisterMSE(ctx, form)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if err != nil {
		w.err = domain.Message(err)
		w.log.Warn("registration failed", zap.String("udyam_number", form.UdyamNumber), zap.Error(err))
		return nil, err
	}

	w.step = StepSubmitted
	w.mseID = mse.ID
	w.log.Info("registered MSE", zap.Int64("mse_id", mse.ID), zap.String("udyam_number", form.UdyamNumber))
	return mse, nil
}
