package ingest

import (
	"fmt"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// router drains the global inbound channel and forwards each command to the
// worker channel registered for its symbol. It holds no state besides the
// route table and performs no parsing or sequencing of its own.
type router struct {
	inbox  <-chan MultiRawCommand
	routes map[string]chan<- RawCommand
	onDrop func(symbol string)
	obs    Observer
}

func newRouter(inbox <-chan MultiRawCommand, routes map[string]chan<- RawCommand, onDrop func(symbol string), obs Observer) *router {
	return &router{inbox: inbox, routes: routes, onDrop: onDrop, obs: obs}
}

func (r *router) run(t *tomb.Tomb) (err error) {
	log.Info().Msg("router starting")
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("router panicked: %v", rec)
			log.Error().Interface("panic", rec).Msg("router recovered from panic")
		}
	}()

	for {
		select {
		case <-t.Dying():
			log.Info().Msg("router stopping")
			return nil
		case mcmd, ok := <-r.inbox:
			if !ok {
				log.Info().Msg("router inbox closed")
				return nil
			}
			tx, known := r.routes[mcmd.Symbol]
			if !known {
				log.Debug().Str("symbol", mcmd.Symbol).Msg("dropping command for unknown symbol")
				if r.onDrop != nil {
					r.onDrop(mcmd.Symbol)
				}
				if r.obs != nil {
					r.obs.RouterDropped(mcmd.Symbol)
				}
				continue
			}
			select {
			case tx <- mcmd.Cmd:
			case <-t.Dying():
				return nil
			}
		}
	}
}
