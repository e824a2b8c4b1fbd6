package loadtest

import (
	"fmt"
	"sort"

	"github.com/okian/jobfit/internal/domain/model"
)

const maxConfidence = 100.0

// verifyPrediction checks the ranking contract of one response.
func verifyPrediction(result *model.PredictionResult, topK int) error {
	if result.ModelVersion == "" {
		return fmt.Errorf("missing model version")
	}
	if len(result.Predictions) == 0 {
		return fmt.Errorf("empty ranking")
	}
	if topK > 0 && len(result.Predictions) > topK {
		return fmt.Errorf("ranking has %d entries, top_k is %d", len(result.Predictions), topK)
	}

	for i, p := range result.Predictions {
		if p.Confidence < 0 || p.Confidence > maxConfidence {
			return fmt.Errorf("entry %d (%s): confidence %.2f out of range", i, p.JobRole, p.Confidence)
		}
		if p.MissingSkills == nil {
			return fmt.Errorf("entry %d (%s): missing_skills is null", i, p.JobRole)
		}
		if i == 0 {
			continue
		}
		prev := result.Predictions[i-1]
		if p.Confidence > prev.Confidence || (p.Confidence == prev.Confidence && p.JobRole < prev.JobRole) {
			return fmt.Errorf("entry %d (%s %.2f) ranks above entry %d (%s %.2f)",
				i, p.JobRole, p.Confidence, i-1, prev.JobRole, prev.Confidence)
		}
	}
	return nil
}

// unknownVersions returns observed versions that no retrain published.
func unknownVersions(observed, published map[string]struct{}) []string {
	var out []string
	for v := range observed {
		if _, ok := published[v]; !ok {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
