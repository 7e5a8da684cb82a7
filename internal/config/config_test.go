package config_test

import (
	"testing"

	"github.com/okian/movie-elo/internal/config"
	"github.com/okian/movie-elo/internal/domain/elo"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.EloMean, convey.ShouldEqual, 1500)
			convey.So(cfg.EloSeedStdDev, convey.ShouldEqual, 350)
			convey.So(cfg.EloMergeStdDev, convey.ShouldEqual, 100)
			convey.So(cfg.EloKFactor, convey.ShouldEqual, 32)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the engine config should match the engine defaults", func() {
			ec, err := cfg.Elo()
			convey.So(err, convey.ShouldBeNil)
			convey.So(ec, convey.ShouldResemble, elo.DefaultConfig())
		})
	})

	convey.Convey("Given a comma separated origin list", t, func() {
		cfg := config.New()
		cfg.CORSAllowedOrigins = " http://a.test, ,http://b.test "

		convey.Convey("Then blanks should be dropped", func() {
			convey.So(cfg.AllowedOrigins(), convey.ShouldResemble, []string{"http://a.test", "http://b.test"})
		})
	})
}
