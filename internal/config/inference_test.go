package config

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(s string) *string { return &s }

func TestValidModelID(t *testing.T) {
	valid := []string{
		"",
		"anthropic.claude-3-sonnet-20240229-v1:0",
		"us.anthropic.claude-3-5-sonnet-20240620-v1:0",
		"arn:aws:bedrock:us-east-1::foundation-model/anthropic.claude-v2",
		"arn:aws:bedrock:us-west-2:123456789012:inference-profile/us.meta.llama3-2-11b-instruct-v1:0",
		"arn:aws:sagemaker:us-east-1:123456789012:endpoint/my-endpoint",
	}
	for _, id := range valid {
		assert.True(t, ValidModelID(id), "expected valid: %q", id)
	}
	for _, id := range []string{"Bad Model!", "claude", "arn:aws:s3:::bucket"} {
		assert.False(t, ValidModelID(id), "expected invalid: %q", id)
	}
}

func TestApply_InvalidFieldsDoNotBlockOthers(t *testing.T) {
	in := DefaultInference()
	out, errs := in.Apply(InferenceUpdate{
		GuardrailID: ptr(" gr-1 "),
		Temperature: ptr("1.5"),
		TopP:        ptr("0.25"),
		ModelID:     ptr("not a model"),
	})
	assert.Equal(t, "gr-1", out.GuardrailID)
	assert.Equal(t, DefaultTemperature, out.Temperature)
	assert.Equal(t, 0.25, out.TopP)
	assert.Equal(t, "", out.ModelID)
	assert.Contains(t, errs, "temperature")
	assert.Contains(t, errs, "model_id")
	assert.NotContains(t, errs, "top_p")

	_, errs = in.Apply(InferenceUpdate{Temperature: ptr("abc")})
	assert.Contains(t, errs, "temperature")
}

func TestApply_RejectsNonFiniteNumbers(t *testing.T) {
	in := DefaultInference()
	for _, v := range []string{"NaN", "nan", "Inf", "-Inf", "+Infinity"} {
		out, errs := in.Apply(InferenceUpdate{Temperature: ptr(v), TopP: ptr(v)})
		assert.Equal(t, DefaultTemperature, out.Temperature, v)
		assert.Equal(t, DefaultTopP, out.TopP, v)
		assert.Contains(t, errs, "temperature", v)
		assert.Contains(t, errs, "top_p", v)

		_, err := json.Marshal(out)
		assert.NoError(t, err, v)
	}

	s := NewInferenceStore(Inference{Temperature: math.NaN(), TopP: math.Inf(1)})
	s.Update(7, InferenceUpdate{Temperature: ptr("NaN")})
	got := s.Get(7)
	assert.Equal(t, DefaultTemperature, got.Temperature)
	assert.Equal(t, DefaultTopP, got.TopP)
}

func TestInferenceStore_CopyOnRead(t *testing.T) {
	s := NewInferenceStore(DefaultInference())

	captured := s.Get(7)
	_, errs := s.Update(7, InferenceUpdate{Temperature: ptr("0.1"), ModelID: ptr("anthropic.claude-v2")})
	assert.Empty(t, errs)

	assert.Equal(t, DefaultTemperature, captured.Temperature, "earlier snapshot must not change")
	assert.Equal(t, 0.1, s.Get(7).Temperature)
	assert.Equal(t, DefaultTemperature, s.Get(8).Temperature)
}
