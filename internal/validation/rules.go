package validation

// Rule names accepted by Builder.Remove.
const (
	RuleOperationNameUniqueness     = "OperationNameUniqueness"
	RuleLoneAnonymousOperation      = "LoneAnonymousOperation"
	RuleSupportedOperationType      = "SupportedOperationType"
	RuleFragmentNameUniqueness      = "FragmentNameUniqueness"
	RuleKnownFragmentNames          = "KnownFragmentNames"
	RuleFragmentCycles              = "FragmentCycles"
	RuleUnusedFragments             = "UnusedFragments"
	RuleSubscriptionSingleRootField = "SubscriptionSingleRootField"
	RuleKnownTypeNames              = "KnownTypeNames"
	RuleFragmentsOnCompositeTypes   = "FragmentsOnCompositeTypes"
	RuleFieldsOnCorrectType         = "FieldsOnCorrectType"
	RulePossibleFragmentSpreads     = "PossibleFragmentSpreads"
	RuleLeafFieldSelections         = "LeafFieldSelections"
	RuleSelectionMerging            = "SelectionMerging"
	RuleKnownArgumentNames          = "KnownArgumentNames"
	RuleUniqueArgumentNames         = "UniqueArgumentNames"
	RuleProvidedRequiredArguments   = "ProvidedRequiredArguments"
	RuleKnownDirectives             = "KnownDirectives"
	RuleUniqueDirectivesPerLocation = "UniqueDirectivesPerLocation"
	RuleValuesOfCorrectType         = "ValuesOfCorrectType"
	RuleUniqueVariableNames         = "UniqueVariableNames"
	RuleVariablesAreInputTypes      = "VariablesAreInputTypes"
	RuleNoUndefinedVariables        = "NoUndefinedVariables"
	RuleNoUnusedVariables           = "NoUnusedVariables"
	RuleVariablesInAllowedPosition  = "VariablesInAllowedPosition"
	RuleCoordinateCycleDepth        = "CoordinateCycleDepth"
	RuleIntrospectionNotAllowed     = "IntrospectionNotAllowed"
)

// DefaultRules returns the executable-document rules of the GraphQL
// specification plus the coordinate cycle limiter.
func DefaultRules() []Rule {
	return []Rule{
		NewInspectorRule(RuleOperationNameUniqueness, 0, true, operationNameUniqueness),
		NewInspectorRule(RuleLoneAnonymousOperation, 0, true, loneAnonymousOperation),
		NewInspectorRule(RuleSupportedOperationType, 0, true, supportedOperationType),
		NewInspectorRule(RuleFragmentNameUniqueness, 10, true, fragmentNameUniqueness),
		NewInspectorRule(RuleKnownFragmentNames, 10, true, knownFragmentNames),
		NewInspectorRule(RuleFragmentCycles, 10, true, fragmentCycles),
		NewInspectorRule(RuleUnusedFragments, 10, true, unusedFragments),
		NewInspectorRule(RuleSubscriptionSingleRootField, 10, true, subscriptionSingleRootField),
		NewInspectorRule(RuleKnownTypeNames, 20, true, knownTypeNames),
		NewInspectorRule(RuleFragmentsOnCompositeTypes, 20, true, fragmentsOnCompositeTypes),
		NewVisitorRule(RuleFieldsOnCorrectType, 30, true, fieldsOnCorrectType{}),
		NewVisitorRule(RulePossibleFragmentSpreads, 30, true, possibleFragmentSpreads{}),
		NewVisitorRule(RuleLeafFieldSelections, 30, true, leafFieldSelections{}),
		NewVisitorRule(RuleKnownArgumentNames, 40, true, knownArgumentNames{}),
		NewVisitorRule(RuleUniqueArgumentNames, 40, true, uniqueArgumentNames{}),
		NewVisitorRule(RuleProvidedRequiredArguments, 40, true, providedRequiredArguments{}),
		NewVisitorRule(RuleKnownDirectives, 40, true, knownDirectives{}),
		NewVisitorRule(RuleUniqueDirectivesPerLocation, 40, true, uniqueDirectivesPerLocation{}),
		NewVisitorRule(RuleValuesOfCorrectType, 50, true, valuesOfCorrectType{}),
		NewVisitorRule(RuleUniqueVariableNames, 50, true, uniqueVariableNames{}),
		NewVisitorRule(RuleVariablesAreInputTypes, 50, true, variablesAreInputTypes{}),
		NewVisitorRule(RuleNoUndefinedVariables, 50, true, noUndefinedVariables{}),
		NewVisitorRule(RuleNoUnusedVariables, 50, true, noUnusedVariables{}),
		NewVisitorRule(RuleVariablesInAllowedPosition, 50, true, variablesInAllowedPosition{}),
		NewVisitorRule(RuleSelectionMerging, 60, true, selectionMerging{}),
		NewVisitorRule(RuleCoordinateCycleDepth, 70, true, coordinateCycleDepth{}),
	}
}

// IntrospectionRule rejects introspection root fields unless the request
// context data carries the allow-introspection feature. It depends on
// request data and is therefore never cached.
func IntrospectionRule() Rule {
	return NewInspectorRule(RuleIntrospectionNotAllowed, 5, false, introspectionNotAllowed)
}
