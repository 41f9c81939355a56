package detector

import (
	"github.com/pavewatch/pavewatch-go/internal/datastore"
)

// classLabels maps model class labels onto canonical defect types. The
// model was trained with its own label vocabulary; everything downstream
// uses the canonical names.
var classLabels = map[string]datastore.DefectType{
	"apothole": datastore.DefectPothole,
	"pothole":  datastore.DefectPothole,
	"spalling": datastore.DefectSpalling,
	"patching": datastore.DefectPatching,
	"rm":       datastore.DefectMarking,
	"marking":  datastore.DefectMarking,
}

// mapClass resolves a model class label to its defect type.
func mapClass(label string) (datastore.DefectType, bool) {
	defectType, ok := classLabels[label]
	return defectType, ok
}

// severityFor grades a defect by its bounding box pixel area. Thresholds
// are per defect type, calibrated against the detection model's training
// imagery. Patching never grades above medium: an intact patch is a
// serviceability concern, not a hazard.
func severityFor(defectType datastore.DefectType, areaPixels float64) datastore.Severity {
	switch defectType {
	case datastore.DefectPothole:
		switch {
		case areaPixels > 8000:
			return datastore.SeverityHigh
		case areaPixels > 3000:
			return datastore.SeverityMedium
		default:
			return datastore.SeverityLow
		}
	case datastore.DefectSpalling:
		switch {
		case areaPixels > 12000:
			return datastore.SeverityHigh
		case areaPixels > 5000:
			return datastore.SeverityMedium
		default:
			return datastore.SeverityLow
		}
	case datastore.DefectPatching:
		if areaPixels > 10000 {
			return datastore.SeverityMedium
		}
		return datastore.SeverityLow
	case datastore.DefectMarking:
		switch {
		case areaPixels > 8000:
			return datastore.SeverityHigh
		case areaPixels > 4000:
			return datastore.SeverityMedium
		default:
			return datastore.SeverityLow
		}
	default:
		if areaPixels > 8000 {
			return datastore.SeverityMedium
		}
		return datastore.SeverityLow
	}
}

// extentFor computes a detection's extent. Potholes count instances, one
// per box; area defect types carry affected area in square meters derived
// from the configured ground resolution.
func extentFor(defectType datastore.DefectType, areaPixels, metersPerPixel float64) float64 {
	if defectType == datastore.DefectPothole {
		return 1
	}
	return areaPixels * metersPerPixel * metersPerPixel
}
