package templates

// Axis keys are code; display strings come from the catalog.
func builtinDefinitions() []Definition {
	return []Definition{
		{
			ID:       "bar_race",
			Category: CategoryRanking,
			Axes: []AxisRequirement{
				{Key: "entity_column", Required: true, Type: AxisCategorical},
				{Key: "value_column", Required: true, Type: AxisNumeric},
				{Key: "time_column", Required: true, Type: AxisTemporal},
				{Key: "group_column", Required: false, Type: AxisCategorical},
			},
			DefaultTopN: 12,
			Skeleton:    skeleton("bar_race"),
		},
		{
			ID:       "bubble",
			Category: CategoryCorrelation,
			Axes: []AxisRequirement{
				{Key: "x_column", Required: true, Type: AxisNumeric},
				{Key: "y_column", Required: true, Type: AxisNumeric},
				{Key: "size_column", Required: true, Type: AxisNumeric},
				{Key: "time_column", Required: true, Type: AxisTemporal},
				{Key: "entity_column", Required: true, Type: AxisCategorical},
				{Key: "group_column", Required: false, Type: AxisCategorical},
			},
			Skeleton: skeleton("bubble"),
		},
		{
			ID:       "line_evolution",
			Category: CategoryTrend,
			Axes: []AxisRequirement{
				{Key: "value_column", Required: true, Type: AxisNumeric},
				{Key: "time_column", Required: true, Type: AxisTemporal},
				{Key: "entity_column", Required: false, Type: AxisCategorical},
				{Key: "group_column", Required: false, Type: AxisCategorical},
			},
			Skeleton: skeleton("line_evolution"),
		},
		{
			ID:       "distribution",
			Category: CategoryDistribution,
			Axes: []AxisRequirement{
				{Key: "value_column", Required: true, Type: AxisNumeric},
				{Key: "time_column", Required: true, Type: AxisTemporal},
				{Key: "entity_column", Required: false, Type: AxisCategorical},
			},
			Skeleton: skeleton("distribution"),
		},
		{
			ID:       "bento_grid",
			Category: CategoryDashboard,
			Axes: []AxisRequirement{
				{Key: "label_column", Required: true, Type: AxisCategorical},
				{Key: "value_column", Required: true, Type: AxisNumeric},
				{Key: "change_column", Required: false, Type: AxisNumeric},
			},
			DefaultTopN: 9,
			Skeleton:    skeleton("bento_grid"),
		},
		{
			ID:       "single_numeric",
			Category: CategoryComparison,
			Axes: []AxisRequirement{
				{Key: "category_column", Required: true, Type: AxisCategorical},
				{Key: "value_column", Required: true, Type: AxisNumeric},
			},
			DefaultTopN: 15,
			Skeleton:    skeleton("single_numeric"),
		},
	}
}
