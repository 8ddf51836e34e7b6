package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jose-valero/autovoice-bot/internal/domain"
)

// AutoChannelService es el manager de ciclo de vida de los canales generados:
// registry de plantillas, tabla de canales activos, colas de espera FIFO por
// plantilla, sweep periódico de canales vacíos y publish best-effort al cache.
//
// Todo el estado mutable vive acá adentro (nada global): dispatcher, sweep y
// forceCleanup se serializan con un único mutex, así el check de capacidad y
// la creación son una sola sección crítica y nunca pasamos maxChannels.
type AutoChannelService struct {
	gw    Gateway
	cache CacheSync // opcional; nil = no publicamos

	mu     sync.Mutex
	cfgs   map[string]domain.TemplateConfig     // por template channel id
	active map[string]*domain.ActiveAutoChannel // por channel id
	queues map[string][]waitEntry               // FIFO por plantilla
	queued map[string]string                    // member id -> plantilla donde espera
	seq    map[string]int                       // contador monotónico por plantilla

	started bool
	stopped bool
	stopCh  chan struct{}

	now func() time.Time // inyectable en tests
}

type waitEntry struct {
	MemberID   string
	EnqueuedAt time.Time
}

func NewAutoChannelService(gw Gateway, cache CacheSync) *AutoChannelService {
	return &AutoChannelService{
		gw:     gw,
		cache:  cache,
		cfgs:   map[string]domain.TemplateConfig{},
		active: map[string]*domain.ActiveAutoChannel{},
		queues: map[string][]waitEntry{},
		queued: map[string]string{},
		seq:    map[string]int{},
		stopCh: make(chan struct{}),
		now:    time.Now,
	}
}

// LoadChannelConfigs reemplaza el registry completo (snapshot, sin merge).
// Las plantillas que desaparecen dejan de generar; sus canales activos siguen
// trackeados y el sweep los limpia igual. Colas de plantillas que ya no
// existen (o quedaron disabled) se descartan: nunca podrían drenar.
func (s *AutoChannelService) LoadChannelConfigs(configs []domain.TemplateConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	s.cfgs = make(map[string]domain.TemplateConfig, len(configs))
	for _, c := range configs {
		s.cfgs[c.TemplateChannelID] = c
	}

	for tpl, q := range s.queues {
		cfg, ok := s.cfgs[tpl]
		if ok && cfg.Enabled {
			continue
		}
		for _, e := range q {
			delete(s.queued, e.MemberID)
		}
		delete(s.queues, tpl)
	}
	log.Printf("[autovc] configs cargadas n=%d", len(configs))
}

// HandleVoiceEvent procesa una notificación de membresía de voz. Cada evento
// se maneja completo y sus errores quedan acá: un evento que falla nunca
// bloquea los siguientes.
func (s *AutoChannelService) HandleVoiceEvent(ctx context.Context, ev domain.VoiceEvent) {
	if ev.NewChannelID == ev.PrevChannelID {
		return // mute/deafen y similares: no cambió el canal
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	// ¿entró a una plantilla configurada?
	if cfg, ok := s.cfgs[ev.NewChannelID]; ok && cfg.Enabled && cfg.MaxChannels > 0 {
		if s.countByTemplateLocked(cfg.TemplateChannelID) < cfg.MaxChannels {
			if err := s.createAndMoveLocked(ctx, cfg, ev.MemberID); err != nil {
				// el miembro queda donde estaba; ni cola ni drop silencioso
				log.Printf("[autovc] create tpl=%s member=%s guild=%s: %v",
					cfg.TemplateChannelID, ev.MemberID, cfg.GuildID, err)
			}
		} else {
			s.enqueueLocked(cfg.TemplateChannelID, ev.MemberID)
		}
	} else if ch, ok := s.active[ev.NewChannelID]; ok {
		// entró a un canal generado
		ch.MemberCount++
		ch.EmptyAt = time.Time{}
		s.dequeueLocked(ev.MemberID) // adentro de un canal no se espera en cola
		s.publishLocked(ctx, ch.GuildID)
	}

	// salió de un canal generado (aplica también en un move entre dos trackeados)
	if ch, ok := s.active[ev.PrevChannelID]; ok {
		if ch.MemberCount > 0 {
			ch.MemberCount--
			if ch.MemberCount == 0 {
				// recién acá arranca el reloj del timeout; un leave
				// repetido sobre un canal ya vacío no lo reinicia
				ch.EmptyAt = s.now()
			}
		}
		s.publishLocked(ctx, ch.GuildID)
	}
}

// Start arranca el sweep periódico. Idempotente; no hace nada tras Stop.
func (s *AutoChannelService) Start(interval time.Duration) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				s.mu.Lock()
				if !s.stopped {
					s.sweepLocked(ctx)
				}
				s.mu.Unlock()
				cancel()
			case <-s.stopCh:
				return
			}
		}
	}()
}

// ForceCleanup corre el mismo sweep fuera de la cadencia del ticker (para
// operadores y tests). Comparte el mutex con el tick: nunca se intercalan.
// Devuelve cuántos canales borró.
func (s *AutoChannelService) ForceCleanup(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0
	}
	return s.sweepLocked(ctx)
}

// Stats devuelve un snapshot calculado en el momento, nunca cacheado.
func (s *AutoChannelService) Stats() domain.AutoChannelStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := domain.AutoChannelStats{
		TotalChannels:      len(s.active),
		ChannelsByTemplate: make(map[string]int, len(s.cfgs)),
	}
	for _, ch := range s.active {
		st.ChannelsByTemplate[ch.TemplateChannelID]++
	}
	for _, q := range s.queues {
		st.QueueSize += len(q)
	}
	return st
}

// Stop cancela el ticker y vacía todo el estado. Es terminal y seguro de
// llamar aunque Start nunca haya corrido (o más de una vez).
func (s *AutoChannelService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stopCh)

	s.cfgs = map[string]domain.TemplateConfig{}
	s.active = map[string]*domain.ActiveAutoChannel{}
	s.queues = map[string][]waitEntry{}
	s.queued = map[string]string{}
	log.Printf("[autovc] detenido")
}

// ---------- internos (requieren s.mu) ----------

func (s *AutoChannelService) countByTemplateLocked(templateID string) int {
	n := 0
	for _, ch := range s.active {
		if ch.TemplateChannelID == templateID {
			n++
		}
	}
	return n
}

// createAndMoveLocked crea el canal con el próximo número de secuencia, lo
// registra y mueve al miembro. El contador sólo avanza con create confirmado,
// así los números nunca se repiten en el proceso aunque borremos canales.
// Si el move falla después del create, el canal queda registrado igual
// (vacío, con emptyAt seteado) y el sweep lo levanta como a cualquier otro.
func (s *AutoChannelService) createAndMoveLocked(ctx context.Context, cfg domain.TemplateConfig, memberID string) error {
	next := s.seq[cfg.TemplateChannelID] + 1
	name := domain.RenderChannelName(cfg.NamePattern, next)

	id, err := s.gw.CreateChannel(ctx, cfg.GuildID, domain.CreateChannelParams{
		Name:        name,
		ParentID:    cfg.ParentID,
		UserLimit:   cfg.UserLimit,
		Permissions: cfg.Permissions,
	})
	if err != nil {
		return fmt.Errorf("crear %q: %w", name, err)
	}
	s.seq[cfg.TemplateChannelID] = next

	s.active[id] = &domain.ActiveAutoChannel{
		ChannelID:         id,
		TemplateChannelID: cfg.TemplateChannelID,
		GuildID:           cfg.GuildID,
		Name:              name,
		MemberCount:       0, // lo sube la notificación del move, no lo adivinamos
		EmptyAt:           s.now(),
		EmptyTimeout:      cfg.EmptyTimeout,
		SequenceNumber:    next,
	}
	s.publishLocked(ctx, cfg.GuildID)

	if err := s.gw.MoveMember(ctx, cfg.GuildID, memberID, id); err != nil {
		log.Printf("[autovc] move member=%s -> %s: %v (canal queda registrado)", memberID, id, err)
	}
	return nil
}

func (s *AutoChannelService) enqueueLocked(templateID, memberID string) {
	if _, ok := s.queued[memberID]; ok {
		return // a lo sumo una cola por miembro
	}
	s.queues[templateID] = append(s.queues[templateID], waitEntry{
		MemberID:   memberID,
		EnqueuedAt: s.now(),
	})
	s.queued[memberID] = templateID
	log.Printf("[autovc] encolado member=%s tpl=%s pos=%d", memberID, templateID, len(s.queues[templateID]))
}

func (s *AutoChannelService) dequeueLocked(memberID string) {
	tpl, ok := s.queued[memberID]
	if !ok {
		return
	}
	q := s.queues[tpl]
	for i, e := range q {
		if e.MemberID == memberID {
			s.queues[tpl] = append(q[:i], q[i+1:]...)
			break
		}
	}
	if len(s.queues[tpl]) == 0 {
		delete(s.queues, tpl)
	}
	delete(s.queued, memberID)
}

// sweepLocked borra los canales vacíos que ya pasaron su timeout. Un delete
// que falla se loguea y se reintenta en el próximo tick: la tabla nunca
// pierde de vista un canal que no se pudo borrar.
func (s *AutoChannelService) sweepLocked(ctx context.Context) int {
	now := s.now()

	// primero juntamos los vencidos: el drain agrega canales a s.active
	// y no queremos barrer en la misma pasada lo que recién creamos
	var expired []string
	for id, ch := range s.active {
		if !ch.EmptyAt.IsZero() && now.Sub(ch.EmptyAt) >= ch.EmptyTimeout {
			expired = append(expired, id)
		}
	}

	deleted := 0
	for _, id := range expired {
		ch := s.active[id]
		if err := s.gw.DeleteChannel(ctx, id, "auto channel vacío"); err != nil {
			log.Printf("[autovc] delete ch=%s tpl=%s: %v (reintento en el próximo tick)", id, ch.TemplateChannelID, err)
			continue
		}
		delete(s.active, id)
		deleted++
		s.publishLocked(ctx, ch.GuildID)
		s.drainLocked(ctx, ch.TemplateChannelID)
	}
	return deleted
}

// drainLocked: al liberarse capacidad creamos canal para el primero de la
// cola (drain-on-deletion: el que espera no tiene que hacer nada más).
// Si el create falla, el miembro vuelve al frente y lo reintentamos cuando
// se libere capacidad otra vez.
func (s *AutoChannelService) drainLocked(ctx context.Context, templateID string) {
	cfg, ok := s.cfgs[templateID]
	if !ok || !cfg.Enabled || cfg.MaxChannels <= 0 {
		return
	}
	for len(s.queues[templateID]) > 0 && s.countByTemplateLocked(templateID) < cfg.MaxChannels {
		head := s.queues[templateID][0]
		s.queues[templateID] = s.queues[templateID][1:]
		delete(s.queued, head.MemberID)

		if err := s.createAndMoveLocked(ctx, cfg, head.MemberID); err != nil {
			log.Printf("[autovc] drain tpl=%s member=%s: %v", templateID, head.MemberID, err)
			s.queues[templateID] = append([]waitEntry{head}, s.queues[templateID]...)
			s.queued[head.MemberID] = templateID
			break
		}
	}
	if len(s.queues[templateID]) == 0 {
		delete(s.queues, templateID)
	}
}

// publishLocked empuja el set de canales activos del guild al cache.
// Best-effort: si el cache no está, el estado en memoria manda igual.
func (s *AutoChannelService) publishLocked(ctx context.Context, guildID string) {
	if s.cache == nil {
		return
	}
	channels := make([]domain.ActiveAutoChannel, 0, len(s.active))
	for _, ch := range s.active {
		if ch.GuildID == guildID {
			channels = append(channels, *ch)
		}
	}
	if err := s.cache.SetAutoChannels(ctx, guildID, channels); err != nil {
		log.Printf("[autovc] cache publish guild=%s: %v", guildID, err)
	}
}
