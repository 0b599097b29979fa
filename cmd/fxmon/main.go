package main

import (
	"flag"
	"log"
	"strings"

	"github.com/JFDuval/flexsea-v2/pkg/bridge/mqtt"
	"github.com/JFDuval/flexsea-v2/pkg/config"
)

func main() {
	config.SetupFlags()
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	conf, err := config.Load()
	if err != nil {
		log.Fatalln(err)
	}
	q, err := mqtt.NewQueueFromURL(conf.MQTTURL)
	if err != nil {
		log.Fatalln(err)
	}
	if err = q.Connect(); err != nil {
		log.Fatalln(err)
	}

	q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		if strings.HasPrefix(topic, mqtt.StateTopic+"/") {
			log.Printf("%s: %s", topic, string(payload))
			return
		}
		rec, err := mqtt.DecodeRecord(payload)
		if err != nil {
			log.Printf("%s: bad record: %v", topic, err)
			return
		}
		log.Printf("%s: [%s] %s %x", rec.Channel,
			rec.Time.Format("15:04:05.000"), rec.Frame.String(), rec.Frame.Payload)
	}))
	<-(chan struct{})(nil)
}
