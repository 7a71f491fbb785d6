package main

import (
	"strconv"
	"time"

	"github.com/chaoschain/go-evidence-provider/conf"
	"github.com/chaoschain/go-evidence-provider/internal/computing"
	"github.com/chaoschain/go-evidence-provider/internal/initializer"
	"github.com/chaoschain/go-evidence-provider/util"
	"github.com/fatih/color"
	"github.com/filswan/go-mcs-sdk/mcs/api/common/logs"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/itsjamie/gin-cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "Start an evidence provider node",
	Action: func(cctx *cli.Context) error {
		logs.GetLogger().Info("Start in evidence provider mode.")

		node, err := initializer.ProjectInit(repoPath(cctx))
		if err != nil {
			return err
		}
		defer node.Close()
		color.Green("node address %s, add it to Compute.AttestationRoots of verifying peers", node.Identity.Address)

		node.Celery.Start()
		defer node.Celery.Stop()

		r := gin.Default()
		r.Use(cors.Middleware(cors.Config{
			Origins:         "*",
			Methods:         "GET, PUT, POST, DELETE",
			RequestHeaders:  "Origin, Authorization, Content-Type",
			ExposedHeaders:  "",
			MaxAge:          50 * time.Second,
			ValidateHeaders: false,
		}))
		pprof.Register(r)
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))

		service := computing.NewEvidenceService(node.Storage, node.Compute, node.Receipts, conf.GetConfig().API.NodeName, node.Identity.Address)
		service.RegisterRoutes(r.Group("/api/v1"))

		shutdownChan := make(chan struct{})
		httpStopper, err := util.ServeHttp(r, "ep-api", ":"+strconv.Itoa(conf.GetConfig().API.Port))
		if err != nil {
			logs.GetLogger().Fatalf("failed to start ep-api endpoint: %s", err)
		}

		finishCh := util.MonitorShutdown(shutdownChan,
			util.ShutdownHandler{Component: "ep-api", StopFunc: httpStopper},
		)
		<-finishCh

		return nil
	},
}
