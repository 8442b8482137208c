package scenario

import (
	"fmt"
	"strings"
)

// Category classifies a scenario by the misconduct it trains against.
type Category string

const (
	CategoryBribery            Category = "bribery"
	CategoryConflictOfInterest Category = "conflict_of_interest"
	CategoryWhistleblowing     Category = "whistleblowing"
	CategoryInformationMisuse  Category = "information_misuse"
)

// Difficulty grades a scenario.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Scenario is one integrity training dilemma.
type Scenario struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Category    Category   `json:"category"`
	Difficulty  Difficulty `json:"difficulty"`
	Description string     `json:"description"`

	// Context sets the scene the trainee is dropped into, in Spanish.
	Context string `json:"context"`

	// Dilemma is the open question the trainee must work through.
	Dilemma string `json:"dilemma"`

	// CorrectAction is the reference resolution, used for feedback and
	// for judging scenario completion.
	CorrectAction string `json:"correct_action"`

	// TemptationFactors are the pressures the temptation persona leans
	// on during the scenario.
	TemptationFactors []string `json:"temptation_factors"`

	LearningObjectives []string `json:"learning_objectives"`
}

var scenarios = []Scenario{
	{
		ID:          "procurement_bribery_01",
		Title:       "El Contrato Tentador",
		Category:    CategoryBribery,
		Difficulty:  DifficultyIntermediate,
		Description: "Un proveedor ofrece un soborno para ganar un contrato gubernamental importante.",
		Context: `Eres María González, directora de adquisiciones en una entidad gubernamental.
Tu departamento está evaluando propuestas para un contrato de $50 millones para la
construcción de un nuevo hospital público. Carlos Mendoza, representante de
Constructora Éxito S.A., te invita a almorzar y menciona que su empresa podría
"mostrar su agradecimiento" por una decisión favorable con un "regalo" de $100,000
para "tu desarrollo profesional".`,
		Dilemma: `¿Cómo respondes? El contrato es crucial para la comunidad y Constructora Éxito
tiene una propuesta técnicamente sólida, pero no necesariamente la mejor. El dinero
ofrecido resolvería tus problemas financieros personales inmediatos.`,
		CorrectAction: `Rechazar inmediatamente la oferta, documentar el incidente por escrito,
reportar a supervisores y autoridades de control, retirarse del proceso de evaluación
y cooperar con cualquier investigación subsecuente.`,
		TemptationFactors: []string{
			"Problemas financieros personales urgentes",
			"Propuesta técnicamente competitiva",
			"Presentación 'sutil' de la oferta corrupta",
			"Percepción de que 'todos lo hacen'",
		},
		LearningObjectives: []string{
			"Reconocer ofertas de soborno en contextos profesionales",
			"Aplicar protocolos de reporte de corrupción",
			"Desarrollar resistencia a presiones corruptas",
		},
	},
	{
		ID:          "conflict_interest_01",
		Title:       "La Empresa Familiar",
		Category:    CategoryConflictOfInterest,
		Difficulty:  DifficultyBeginner,
		Description: "Un funcionario debe decidir sobre un contrato donde su hermano es socio.",
		Context: `Eres Pedro Ramírez, coordinador de proyectos en la Alcaldía Municipal. Tu
oficina está evaluando proveedores para el mantenimiento de parques públicos. Entre
las propuestas está "Verde & Jardines Ltda.", empresa donde tu hermano Juan es socio
mayoritario. La propuesta es competitiva y tu hermano realmente necesita el contrato
para mantener su empresa a flote.`,
		Dilemma: `¿Participas en la evaluación sabiendo que tu hermano tiene intereses en una
de las empresas? ¿Cómo manejas la situación para mantener la transparencia del proceso?`,
		CorrectAction: `Declarar inmediatamente el conflicto de interés, apartarse por completo
del proceso de evaluación, documentar la declaración por escrito e informar a los
superiores para que otros colegas evalúen objetivamente.`,
		TemptationFactors: []string{
			"Necesidad económica del hermano",
			"Propuesta técnicamente válida",
			"Confianza en la propia objetividad",
		},
		LearningObjectives: []string{
			"Identificar conflictos de interés familiares",
			"Aplicar protocolos de declaración",
			"Separar intereses personales de funciones públicas",
		},
	},
	{
		ID:          "whistleblowing_01",
		Title:       "El Silencio Cómplice",
		Category:    CategoryWhistleblowing,
		Difficulty:  DifficultyAdvanced,
		Description: "Un empleado descubre irregularidades de su jefe directo y debe decidir si reportarlas.",
		Context: `Eres Ana Rodríguez, contadora en el Ministerio de Educación. Mientras revisas
facturas descubres que Roberto Silva, tu jefe y mentor durante 8 años, ha estado
aprobando pagos a una consultora por servicios que nunca se prestaron, por $2 millones
en los últimos 6 meses. Roberto sabe que estás revisando esos documentos.`,
		Dilemma: `¿Reportas las irregularidades sabiendo que esto destruirá la carrera de Roberto
y potencialmente la tuya? ¿Qué haces si él te pide mantener silencio "por el bien del
equipo"?`,
		CorrectAction: `Documentar cuidadosamente las evidencias, reportar a la oficina de control
interno por canales de denuncia protegida, no confrontar directamente a Roberto y
cooperar con las investigaciones oficiales.`,
		TemptationFactors: []string{
			"Relación personal positiva con el jefe",
			"Miedo a represalias laborales",
			"Presión para 'resolver internamente'",
		},
		LearningObjectives: []string{
			"Desarrollar valor para denunciar irregularidades",
			"Conocer protocolos de protección al denunciante",
			"Priorizar el interés público sobre lealtades personales",
		},
	},
	{
		ID:          "information_misuse_01",
		Title:       "Información Privilegiada",
		Category:    CategoryInformationMisuse,
		Difficulty:  DifficultyIntermediate,
		Description: "Un funcionario tiene acceso a información que podría beneficiar financieramente a familiares.",
		Context: `Eres Laura Martínez, asesora en la oficina de planeación urbana. Trabajas en
el plan maestro de una nueva línea de metro, confidencial hasta el anuncio oficial en
3 meses. Tu cuñado Diego, agente inmobiliario, te pregunta por "zonas prometedoras
para inversión"; una de las zonas que menciona será altamente valorizada por la nueva
estación, pero él no lo sabe.`,
		Dilemma: `¿Le das alguna indicación a Diego sobre dónde invertir? ¿Le adviertes que evite
ciertas zonas sin explicar por qué? ¿Mantienes completo silencio aunque su inversión
pueda ser un desastre?`,
		CorrectAction: `Mantener absoluta confidencialidad, no dar indicaciones directas ni
indirectas sobre inversiones, recordar a los familiares las restricciones del cargo y
declarar cualquier conflicto potencial.`,
		TemptationFactors: []string{
			"Presión familiar indirecta",
			"Percepción de que una pista pequeña es inofensiva",
			"Deseo de proteger los ahorros del cuñado",
		},
		LearningObjectives: []string{
			"Proteger información oficial confidencial",
			"Reconocer el uso indebido de información privilegiada",
			"Mantener equidad en el acceso a oportunidades",
		},
	},
}

// ByID looks up a scenario.
func ByID(id string) (Scenario, error) {
	for _, s := range scenarios {
		if strings.EqualFold(s.ID, id) {
			return s, nil
		}
	}
	return Scenario{}, fmt.Errorf("unknown scenario %q", id)
}

// All returns the catalog in definition order.
func All() []Scenario {
	out := make([]Scenario, len(scenarios))
	copy(out, scenarios)
	return out
}
