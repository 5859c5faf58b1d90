package sessions

import "math"

// BMI computes body mass index from height in centimeters and weight in
// kilograms, rounded to one decimal. Returns 0 for unusable input.
func BMI(heightCm, weightKg float64) float64 {
	if heightCm <= 0 || weightKg <= 0 {
		return 0
	}
	m := heightCm / 100
	return math.Round(weightKg/(m*m)*10) / 10
}

// BMICategory buckets a BMI value using the WS/T 428 cut-offs used for
// Chinese adult populations.
func BMICategory(bmi float64) string {
	switch {
	case bmi <= 0:
		return ""
	case bmi < 18.5:
		return "偏瘦"
	case bmi < 24:
		return "正常"
	case bmi < 28:
		return "超重"
	default:
		return "肥胖"
	}
}

// HealthMetrics summarizes the basic-info step's derived numbers.
func HealthMetrics(p *Profile) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	bmi := BMI(p.HeightCm, p.WeightKg)
	return map[string]any{
		"bmi":          bmi,
		"bmi_category": BMICategory(bmi),
		"height_cm":    p.HeightCm,
		"weight_kg":    p.WeightKg,
	}
}
