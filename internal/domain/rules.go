package domain

// Action vocabulary for the default decision rule table.
const (
	ActionRetentionOutreach = "Retention incentive + personal outreach"
	ActionWinBackOffer      = "Targeted win-back offer"
	ActionReactivation      = "Automated reactivation campaign"
	ActionPreventiveEngage  = "Preventive engagement (loyalty program, nudges)"
	ActionCrossSellCampaign = "Cross-sell recommendation campaign"
	ActionNurtureSequence   = "Engagement nurture sequence"
	ActionUpsellPremium     = "Upsell premium offerings"
	ActionCrossSellProducts = "Cross-sell complementary products"
	ActionMaintain          = "Maintain relationship (standard communications)"
)

// DefaultActionCost applies to actions absent from the cost table.
const DefaultActionCost = 50

// DefaultRecoveryRate applies to actions absent from the recovery table.
const DefaultRecoveryRate = 0.10

// DefaultDecisionRules returns the default ordered rule table keyed on
// (risk level, value segment). First match wins; the table deliberately
// omits a terminal catch-all because the engine carries an explicit
// fallback, which keeps totality auditable in one place.
func DefaultDecisionRules() []DecisionRule {
	return []DecisionRule{
		// High risk
		{
			ID:          "high-risk-high-value",
			Description: "High-value customers at churn risk need immediate 1:1 attention",
			Expression:  `risk_level == "High" && value_segment == "High Value"`,
			Action:      ActionRetentionOutreach,
			Priority:    PriorityHigh,
		},
		{
			ID:          "high-risk-medium-value",
			Description: "Medium-value at-risk customers merit targeted retention effort",
			Expression:  `risk_level == "High" && value_segment == "Medium Value"`,
			Action:      ActionWinBackOffer,
			Priority:    PriorityHigh,
		},
		{
			ID:          "high-risk-low-value",
			Description: "Lower-value churning customers handled via scalable automation",
			Expression:  `risk_level == "High" && value_segment == "Low Value"`,
			Action:      ActionReactivation,
			Priority:    PriorityMedium,
		},

		// Medium risk
		{
			ID:          "medium-risk-high-value",
			Description: "Proactive engagement prevents decay in high-value customers",
			Expression:  `risk_level == "Medium" && value_segment == "High Value"`,
			Action:      ActionPreventiveEngage,
			Priority:    PriorityMedium,
		},
		{
			ID:          "medium-risk-medium-value",
			Description: "Cross-sell strengthens engagement and increases value",
			Expression:  `risk_level == "Medium" && value_segment == "Medium Value"`,
			Action:      ActionCrossSellCampaign,
			Priority:    PriorityMedium,
		},
		{
			ID:          "medium-risk-low-value",
			Description: "Low-touch nurturing for lower-value customers",
			Expression:  `risk_level == "Medium" && value_segment == "Low Value"`,
			Action:      ActionNurtureSequence,
			Priority:    PriorityLow,
		},

		// Low risk
		{
			ID:          "low-risk-high-value",
			Description: "Healthy high-value customers are ideal upsell candidates",
			Expression:  `risk_level == "Low" && value_segment == "High Value"`,
			Action:      ActionUpsellPremium,
			Priority:    PriorityMedium,
		},
		{
			ID:          "low-risk-medium-value",
			Description: "Expand wallet share with engaged customers",
			Expression:  `risk_level == "Low" && value_segment == "Medium Value"`,
			Action:      ActionCrossSellProducts,
			Priority:    PriorityLow,
		},
		{
			ID:          "low-risk-low-value",
			Description: "Low-touch maintenance for stable low-value customers",
			Expression:  `risk_level == "Low" && value_segment == "Low Value"`,
			Action:      ActionMaintain,
			Priority:    PriorityLow,
		},
	}
}

// DefaultActionCosts returns the fixed heuristic cost per action type.
// These are planning estimates for prioritization, not measured spend.
func DefaultActionCosts() map[string]float64 {
	return map[string]float64{
		ActionRetentionOutreach: 500,
		ActionWinBackOffer:      300,
		ActionReactivation:      50,
		ActionPreventiveEngage:  100,
		ActionCrossSellCampaign: 75,
		ActionNurtureSequence:   25,
		ActionUpsellPremium:     150,
		ActionCrossSellProducts: 50,
		ActionMaintain:          10,
		ActionMonitor:           0,
	}
}

// DefaultRecoveryRates returns the assumed fraction of lifetime value
// recoverable per action type.
func DefaultRecoveryRates() map[string]float64 {
	return map[string]float64{
		ActionRetentionOutreach: 0.25,
		ActionWinBackOffer:      0.25,
		ActionReactivation:      0.25,
		ActionPreventiveEngage:  0.40,
		ActionCrossSellCampaign: 0.40,
		ActionNurtureSequence:   0.40,
		ActionUpsellPremium:     0.30,
		ActionCrossSellProducts: 0.60,
		ActionMaintain:          0.60,
		ActionMonitor:           0.10,
	}
}
