package features

// SchemaVersion identifies the field layout produced by Build. Persisted
// models record it and are discarded when it no longer matches.
const SchemaVersion = 2

// Lookbacks used by the frequency fields.
const (
	HotLookback   = 30
	ShortLookback = 20
	LongLookback  = 50
	HotTopN       = 5
	LagDepth      = 3
)

// Names lists the fields of a feature vector, in order.
var Names = []string{
	"parity",
	"mod3",
	"last_digit",
	"abs_diff",
	"repeat_value",
	"direction",
	"same_label_last3",
	"occurrences_30",
	"hot_top5_30",
	"above_mean",
	"is_zero",
	"label_code",
	"label_count_20",
	"label_count_50",
	"label_freq_50",
	"label_repeat",
	"trend_sign",
	"lag_label_1",
	"lag_label_2",
	"lag_label_3",
	"lag_value_1",
	"lag_value_2",
	"lag_value_3",
	"zero_rate_50",
}

// Width is the length of every vector produced by Build.
var Width = len(Names)
