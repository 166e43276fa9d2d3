package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/mindhaven/crisis-api/api/handlers"

	"go.uber.org/zap"

	"github.com/mindhaven/crisis-api/config"
)

func main() {
	a := handlers.App{}
	conf := *config.New()

	if err := a.Initialize(conf); err != nil { // initialize database, pipeline and router
		log.Fatal(err)
	}
	defer a.Scheduler.Stop()

	zap.S().Infow("crisis-api is up and running",
		"port", conf.Port,
		"url", conf.BaseURL,
	)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%v", conf.Port), a.Router))
}
