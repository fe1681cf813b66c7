package config

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

const (
	DefaultTemperature = 0.7
	DefaultTopP        = 0.9
)

// modelIDRe accepts foundation model ids, cross-region inference profiles
// and the Bedrock/SageMaker ARN shapes.
var modelIDRe = regexp.MustCompile(`^(?:` +
	`arn:aws(-[^:]+)?:bedrock:[a-z0-9-]{1,20}:(` +
	`(:foundation-model/[a-z0-9-]{1,63}[.][a-z0-9-]{1,63}([.:]?[a-z0-9-]{1,63}))` +
	`|([0-9]{12}:provisioned-model/[a-z0-9]{12})` +
	`|([0-9]{12}:imported-model/[a-z0-9]{12})` +
	`|([0-9]{12}:application-inference-profile/[a-z0-9]{12})` +
	`|([0-9]{12}:inference-profile/(([a-z-]{2,8}.)[a-z0-9-]{1,63}[.][a-z0-9-]{1,63}([.:]?[a-z0-9-]{1,63})))` +
	`|([0-9]{12}:default-prompt-router/[a-zA-Z0-9:.-]+))` +
	`|(([a-z]{2}[.])([a-z0-9-]{1,63}[.][a-z0-9-]{1,63}([.:]?[a-z0-9-]{1,63})))` +
	`|([a-z0-9-]{1,63}[.][a-z0-9-]{1,63}([.:]?[a-z0-9-]{1,63}))` +
	`|arn:aws(-[^:]+)?:sagemaker:[a-z0-9-]{1,20}:[0-9]{12}:endpoint/[a-z0-9-]{1,63}` +
	`)$`)

// Inference is the per-user tuning captured into each submission. It is a
// value type: a submission keeps the copy it was sent with.
type Inference struct {
	GuardrailID      string  `json:"guardrail_id"`
	GuardrailVersion string  `json:"guardrail_version"`
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"top_p"`
	ModelID          string  `json:"model_id"`
}

func DefaultInference() Inference {
	return Inference{Temperature: DefaultTemperature, TopP: DefaultTopP}
}

// ValidModelID reports whether id is empty (use the backend default) or a
// recognizable model / inference-profile identifier.
func ValidModelID(id string) bool {
	return id == "" || modelIDRe.MatchString(id)
}

// InferenceUpdate carries form values as typed; nil fields are left alone.
type InferenceUpdate struct {
	GuardrailID      *string `json:"guardrail_id"`
	GuardrailVersion *string `json:"guardrail_version"`
	Temperature      *string `json:"temperature"`
	TopP             *string `json:"top_p"`
	ModelID          *string `json:"model_id"`
}

// FieldErrors maps a field name to why its value was not applied.
type FieldErrors map[string]string

// Apply returns in with every valid field of u applied. Invalid fields keep
// their previous value and are reported; they never block the others.
func (in Inference) Apply(u InferenceUpdate) (Inference, FieldErrors) {
	out := in
	errs := FieldErrors{}

	if u.GuardrailID != nil {
		out.GuardrailID = strings.TrimSpace(*u.GuardrailID)
	}
	if u.GuardrailVersion != nil {
		out.GuardrailVersion = strings.TrimSpace(*u.GuardrailVersion)
	}
	if u.Temperature != nil {
		if f, ok := unitInterval(*u.Temperature); ok {
			out.Temperature = f
		} else {
			errs["temperature"] = "must be a number between 0 and 1"
		}
	}
	if u.TopP != nil {
		if f, ok := unitInterval(*u.TopP); ok {
			out.TopP = f
		} else {
			errs["top_p"] = "must be a number between 0 and 1"
		}
	}
	if u.ModelID != nil {
		id := strings.TrimSpace(*u.ModelID)
		if ValidModelID(id) {
			out.ModelID = id
		} else {
			errs["model_id"] = "invalid model inference profile ID"
		}
	}
	return out, errs
}

func unitInterval(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > 1 {
		return 0, false
	}
	return f, true
}

// InferenceStore keeps each user's current settings in memory.
type InferenceStore struct {
	mu       sync.RWMutex
	defaults Inference
	byUser   map[uint64]Inference
}

func NewInferenceStore(defaults Inference) *InferenceStore {
	if _, ok := unitInterval(strconv.FormatFloat(defaults.Temperature, 'f', -1, 64)); !ok {
		defaults.Temperature = DefaultTemperature
	}
	if _, ok := unitInterval(strconv.FormatFloat(defaults.TopP, 'f', -1, 64)); !ok {
		defaults.TopP = DefaultTopP
	}
	if !ValidModelID(defaults.ModelID) {
		defaults.ModelID = ""
	}
	return &InferenceStore{defaults: defaults, byUser: make(map[uint64]Inference)}
}

// Get returns a copy of the user's settings.
func (s *InferenceStore) Get(userID uint64) Inference {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if in, ok := s.byUser[userID]; ok {
		return in
	}
	return s.defaults
}

func (s *InferenceStore) Update(userID uint64, u InferenceUpdate) (Inference, FieldErrors) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byUser[userID]
	if !ok {
		cur = s.defaults
	}
	next, errs := cur.Apply(u)
	s.byUser[userID] = next
	return next, errs
}
