package analyzer

import (
	"fmt"
	"strings"

	"github.com/voxanet/adwin/internal/fbads"
)

// formatMetrics renders the ad's performance numbers for injection into
// the prompt.
func formatMetrics(ad fbads.Ad) string {
	if ad.Insights == nil {
		return "No se proporcionaron datos de rendimiento."
	}
	ins := ad.Insights

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("- Inversión total (Spend): %.2f $\n", ins.Spend))
	sb.WriteString(fmt.Sprintf("- Costo por Compra (CPA): %.2f $\n", ins.CPA))
	if ins.ROAS > 0 {
		sb.WriteString(fmt.Sprintf("- Retorno de la Inversión Publicitaria (ROAS): %.2f\n", ins.ROAS))
	}
	if ins.UniqueCTR > 0 {
		sb.WriteString(fmt.Sprintf("- Porcentaje de Clics (CTR): %.2f%%\n", ins.UniqueCTR))
	}
	if ins.CPM > 0 {
		sb.WriteString(fmt.Sprintf("- Costo por 1000 Impresiones (CPM): %.2f $\n", ins.CPM))
	}
	if ins.HookRate > 0 {
		sb.WriteString(fmt.Sprintf("- Tasa de Gancho (Hook Rate): %.2f%%\n", ins.HookRate))
	}
	if ins.HoldRate > 0 {
		sb.WriteString(fmt.Sprintf("- Tasa de Retención (Hold Rate): %.2f%%\n", ins.HoldRate))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// BuildPrompt constructs the Spanish analysis prompt for a winning ad.
// The response contract: performance analysis, a "---" divider, then a
// markdown table of new scripts with PROMPT_IMG concept lines.
func BuildPrompt(ad fbads.Ad, mediaType string) string {
	var sb strings.Builder

	if mediaType == "video" {
		sb.WriteString("**Contexto:** Eres un Director de Marketing y un experto en estrategia de publicidad en video, especializado en analizar el rendimiento de creatividades en redes sociales. Se te presenta un video publicitario considerado \"ganador\" junto con sus métricas clave de rendimiento.\n\n")
	} else {
		sb.WriteString("**Contexto:** Eres un Director de Marketing y un experto en estrategia de publicidad, especializado en analizar el rendimiento de creatividades en redes sociales. Se te presenta una imagen publicitaria considerada \"ganadora\" junto con sus métricas clave.\n\n")
	}

	sb.WriteString("**Métricas del Anuncio Ganador:**\n")
	sb.WriteString(formatMetrics(ad))
	sb.WriteString("\n\n**Tu Doble Misión:**\n\n")

	sb.WriteString("**Parte 1: Análisis de Rendimiento**\n")
	if mediaType == "video" {
		sb.WriteString("Analiza el video proporcionado a la luz de su rendimiento. Redacta un análisis conciso y perspicaz que explique **POR QUÉ** este anuncio ha funcionado. Tu respuesta debe ser directamente útil para un profesional del marketing. Cubre puntos como el gancho, la narrativa, los visuales, la propuesta de valor y la correlación con las métricas.\n\n")
		sb.WriteString("**Parte 2: Propuestas de Nuevos Guiones Creativos**\n")
		sb.WriteString("Basándote en tu análisis y en los datos de rendimiento, genera **3 nuevas ideas de guiones** para futuras publicidades.\n\n")
	} else {
		sb.WriteString("Analiza la imagen proporcionada a la luz de su rendimiento. Redacta un análisis conciso y perspicaz que explique **POR QUÉ** este anuncio ha funcionado. Tu respuesta debe ser directamente útil para un profesional del marketing. Cubre puntos como el impacto visual, la claridad del mensaje, la audiencia, el branding y la correlación con las métricas.\n\n")
		sb.WriteString("**Parte 2: Propuestas de Nuevos Guiones para Video**\n")
		sb.WriteString("Inspirado por el éxito de esta imagen, genera **3 nuevas ideas de guiones para anuncios de VIDEO**. El objetivo es traducir el éxito de un formato estático a un formato de video dinámico.\n\n")
	}

	sb.WriteString("**Formato OBLIGATORIO para la Parte 2:**\n")
	sb.WriteString("Presenta tus ideas en una tabla Markdown con las siguientes columnas: \"Hook (Gancho)\", \"Escena (Visual)\", \"Línea de Diálogo (Voz en Off)\", y \"Objetivo Estratégico\".\n")
	sb.WriteString("- Para cada uno de los 3 Hooks, detalla al menos 8 escenas.\n")
	sb.WriteString("- Después de la tabla, añade una línea por cada guion que empiece exactamente con `PROMPT_IMG: ` seguida de una descripción visual detallada (en inglés) de la primera escena, lista para un generador de imágenes.\n\n")

	sb.WriteString("**Formato de Respuesta Final:**\n")
	sb.WriteString("1. Comienza directamente con tu análisis de rendimiento (Parte 1).\n")
	sb.WriteString("2. Después del análisis, inserta una línea separadora: `---`\n")
	sb.WriteString("3. Inmediatamente después del separador, inserta la tabla Markdown con los guiones (Parte 2). No añadas ningún texto introductorio antes de la tabla.\n")

	return sb.String()
}
