package remote

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ProbeReport is the outcome of listing one service's tools.
type ProbeReport struct {
	Service string
	Tools   []string
	Missing []string
	Err     error
}

// Probe lists the tools of every service concurrently and compares them with
// the manifest. Failures are reported, never returned; a service that is down
// at startup may come up later.
func Probe(ctx context.Context, m *Manifest, caller *Caller) []ProbeReport {
	specs := map[string]ServiceSpec{}
	for _, svc := range m.Enabled() {
		specs[svc.Name] = svc
	}

	clients := caller.Clients()
	reports := make([]ProbeReport, len(clients))

	g, gctx := errgroup.WithContext(ctx)
	for i, client := range clients {
		i, client := i, client
		g.Go(func() error {
			report := ProbeReport{Service: client.Service()}
			infos, err := client.ListTools(gctx)
			if err != nil {
				report.Err = err
				reports[i] = report
				return nil
			}

			remoteTools := map[string]bool{}
			for _, info := range infos {
				report.Tools = append(report.Tools, info.Name)
				remoteTools[info.Name] = true
			}
			for _, t := range specs[client.Service()].Tools {
				if !remoteTools[t.Name] {
					report.Missing = append(report.Missing, t.Name)
				}
			}
			reports[i] = report
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range reports {
		switch {
		case r.Err != nil:
			log.Warn().Err(r.Err).Str("service", r.Service).Msg("remote service unreachable at startup")
		case len(r.Missing) > 0:
			log.Warn().Str("service", r.Service).Strs("missing", r.Missing).Msg("remote service does not expose declared tools")
		default:
			log.Info().Str("service", r.Service).Int("tools", len(r.Tools)).Msg("remote service ready")
		}
	}
	return reports
}
