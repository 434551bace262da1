// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

package capability

import (
	"fmt"

	"github.com/praxis-hq/praxis/pkg/extension"
)

// RiskLevel classifies how much administrator attention a capability set
// deserves. It is advisory only and never feeds into CheckAccess.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
)

func (l RiskLevel) String() string {
	switch l {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return "unknown"
	}
}

// RiskDetail explains one contribution to the overall risk.
type RiskDetail struct {
	Level   RiskLevel
	Subject string
	Message string
}

// RiskAssessment is the result of AssessRisk. Overall is the maximum of all
// detail levels.
type RiskAssessment struct {
	Overall RiskLevel
	Details []RiskDetail
}

// sensitiveResources are the record kinds whose deletion is always high risk.
var sensitiveResources = map[extension.ResourceKind]bool{
	extension.ResourcePatientRecord:   true,
	extension.ResourceVisitRecord:     true,
	extension.ResourceTreatmentRecord: true,
	extension.ResourceDocumentRecord:  true,
}

// AssessRisk classifies a capability set for administrator review:
// any delete on a sensitive resource is high, any network access is high,
// update or create without delete is medium, read-only is low.
func AssessRisk(caps extension.CapabilitySet) RiskAssessment {
	assessment := RiskAssessment{Overall: RiskLow}

	for kind, actions := range caps.Resources {
		level := RiskLow
		var msg string

		hasDelete := false
		hasWrite := false
		for _, action := range actions {
			switch action {
			case extension.ActionDelete:
				hasDelete = true
			case extension.ActionCreate, extension.ActionUpdate:
				hasWrite = true
			}
		}

		switch {
		case hasDelete && sensitiveResources[kind]:
			level = RiskHigh
			msg = fmt.Sprintf("can delete %s entries", kind)
		case hasDelete:
			level = RiskMedium
			msg = fmt.Sprintf("can delete %s entries", kind)
		case hasWrite:
			level = RiskMedium
			msg = fmt.Sprintf("can modify %s entries", kind)
		default:
			msg = fmt.Sprintf("read-only access to %s", kind)
		}

		assessment.Details = append(assessment.Details, RiskDetail{
			Level:   level,
			Subject: string(kind),
			Message: msg,
		})
		if level > assessment.Overall {
			assessment.Overall = level
		}
	}

	if len(caps.Network) > 0 {
		assessment.Details = append(assessment.Details, RiskDetail{
			Level:   RiskHigh,
			Subject: "network",
			Message: fmt.Sprintf("can reach %d external origin(s)", len(caps.Network)),
		})
		assessment.Overall = RiskHigh
	}

	return assessment
}
