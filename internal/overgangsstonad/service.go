// Package overgangsstonad resolves "overgangsstønad" needs on the rapid by
// looking up a person's transition benefit periods in EF sak.
package overgangsstonad

import (
	"context"
	"time"

	"tiltakspenger-overgangsstonad/internal/common/errors"
	"tiltakspenger-overgangsstonad/internal/common/logging"
	"tiltakspenger-overgangsstonad/internal/efsak"
	"tiltakspenger-overgangsstonad/internal/metrics"
	"tiltakspenger-overgangsstonad/internal/rapids"
)

// Behov is the need this service resolves.
const Behov = "overgangsstønad"

// LosningKey is where the solution is written.
const LosningKey = "@løsning"

// DefaultTimeout bounds the handling of one need.
const DefaultTimeout = 60 * time.Second

// Service is the river listener for overgangsstønad needs.
type Service struct {
	client    efsak.CaseClient
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    logging.Logger
	secureLog logging.Logger
}

// NewService creates the service and registers its river on rapid.
func NewService(rapid *rapids.Rapid, client efsak.CaseClient, timeout time.Duration, m *metrics.Metrics) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	s := &Service{
		client:    client,
		timeout:   timeout,
		metrics:   m,
		logger:    logging.GetGlobalLogger().WithFields(logging.Field{Key: "behov", Value: Behov}),
		secureLog: logging.Secure(),
	}

	rapids.NewRiver(Behov, rapid).
		Validate(
			rapids.DemandAllOrAny("@behov", Behov),
			rapids.Forbid(LosningKey),
			rapids.RequireKey("@id", "@behovId"),
			rapids.RequireKey("ident"),
			rapids.RequireKey("fom"),
			rapids.RequireKey("tom"),
		).
		Register(s)

	return s
}

// OnPacket resolves one need and publishes the solution keyed by ident.
// Failures are logged and returned so the message is not acknowledged.
func (s *Service) OnPacket(ctx context.Context, packet *rapids.Packet, mc rapids.MessageContext) error {
	id := packet.Text("@id")
	behovID := packet.Text("@behovId")

	ctx = logging.ContextWithFields(ctx, logging.Field{Key: "id", Value: id}, logging.Field{Key: "behovId", Value: behovID})
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.logInbound(ctx, packet)

	if err := s.resolve(ctx, packet, mc); err != nil {
		s.metrics.IncrementBehov("error")
		s.logger.Error("feil ved behandling av overgangsstønad-behov, se securelogs for detaljer", nil,
			logging.Field{Key: "id", Value: id})
		s.secureLog.WithContext(ctx).Error("feil ved behandling av overgangsstønad-behov", err,
			logging.Field{Key: "packet", Value: packet.String()})
		return err
	}
	return nil
}

func (s *Service) resolve(ctx context.Context, packet *rapids.Packet, mc rapids.MessageContext) error {
	logger := s.logger.WithContext(ctx)

	ident := packet.Text("ident")
	fomRaw := packet.Text("fom")
	tomRaw := packet.Text("tom")

	fom, ok := NormalizeFom(fomRaw)
	if !ok {
		logger.Warn("Klarte ikke å parse fom, bruker 1970-01-01", logging.Field{Key: "fom", Value: fomRaw})
	}
	tom, ok := NormalizeTom(tomRaw)
	if !ok {
		logger.Warn("Klarte ikke å parse tom, bruker 9999-12-31", logging.Field{Key: "tom", Value: tomRaw})
	}

	start := time.Now()
	result, err := s.client.HentPerioder(ctx, ident, fom, tom, packet.Text("@behovId"))
	s.metrics.ObserveEFSakLatency(err, time.Since(start))
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded && !errors.IsType(err, errors.ErrTypeTimeout) {
			return errors.TimeoutError("overgangsstønad-behov", err)
		}
		return err
	}

	respons, err := ToRespons(result)
	if err != nil {
		return err
	}

	logger.Info("Fikk svar fra EF sak. Sjekk securelog for detaljer")
	s.secureLog.WithContext(ctx).Info("Fikk svar fra EF sak",
		logging.Field{Key: "status", Value: string(result.Status)},
		logging.Field{Key: "respons", Value: respons},
	)

	if err := packet.Set(LosningKey, map[string]Respons{Behov: respons}); err != nil {
		return err
	}

	body, err := packet.JSON()
	if err != nil {
		return errors.InternalError("failed to encode solution", err)
	}

	s.logOutbound(ctx, body)
	if err := mc.Publish(ctx, ident, body); err != nil {
		return err
	}

	s.metrics.IncrementBehov(respons.outcome())
	return nil
}

func (s *Service) logInbound(ctx context.Context, packet *rapids.Packet) {
	s.logger.WithContext(ctx).Info("løser overgangsstønad-behov")
	secure := s.secureLog.WithContext(ctx)
	secure.Info("løser overgangsstønad-behov")
	secure.Debug("mottok melding", logging.Field{Key: "packet", Value: packet.String()})
}

func (s *Service) logOutbound(ctx context.Context, body []byte) {
	s.logger.WithContext(ctx).Info("har løst overgangsstønad-behov")
	secure := s.secureLog.WithContext(ctx)
	secure.Info("har løst overgangsstønad-behov")
	secure.Debug("publiserer melding", logging.Field{Key: "packet", Value: string(body)})
}
