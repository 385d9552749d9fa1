package staging

import "go.uber.org/fx"

var Module = fx.Module("staging",
	fx.Provide(NewArchiver),
)
