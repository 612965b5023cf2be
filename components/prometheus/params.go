package prometheus

import (
	"github.com/iotaledger/hive.go/app"
)

type ParametersPrometheus struct {
	Enabled        bool   `default:"true" usage:"whether the prometheus exporter is enabled"`
	BindAddress    string `default:"localhost:9311" usage:"the bind address on which the Prometheus exporter listens on"`
	GoMetrics      bool   `default:"false" usage:"include go metrics"`
	ProcessMetrics bool   `default:"false" usage:"include process metrics"`
	UnitMetrics    bool   `default:"true" usage:"include loaded unit metrics"`
}

var ParamsPrometheus = &ParametersPrometheus{}

var params = &app.ComponentParams{
	Params: map[string]any{
		"prometheus": ParamsPrometheus,
	},
	Masked: []string{},
}
