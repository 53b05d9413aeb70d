package frontend

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"safedrive/ml"
)

const (
	MsgSubtitle        = "Insurance risk prediction"
	MsgAgeLabel        = "Select the vehicle age:"
	MsgTypeLabel       = "Select the vehicle type:"
	MsgModelLabel      = "Select the prediction model:"
	MsgSubmit          = "Run prediction"
	MsgResultHeading   = "Prediction result:"
	MsgModelUsed       = "Model used: %s"
	MsgHighRisk        = "High Risk"
	MsgLowRisk         = "Low Risk"
	MsgMissingArtifact = "The model file %q was not found. Make sure it is in the same folder as the service."
	MsgLoadFailed      = "An error occurred while loading the model: %v"
	MsgSchema          = "The model variables were not loaded correctly."
	MsgUnknownModel    = "Model not recognized"
	MsgPrediction      = "An error occurred during prediction: %v"
	MsgInvalidInput    = "Invalid input: %v"
	MsgBusy            = "A prediction is already running, wait for it to finish."
	MsgCanceled        = "The request was canceled."
)

var spanish = map[string]string{
	MsgSubtitle:        "Predicción de Riesgo para Aseguradora",
	MsgAgeLabel:        "Seleccione la edad del vehículo:",
	MsgTypeLabel:       "Seleccione el tipo de vehículo:",
	MsgModelLabel:      "Seleccione el modelo de predicción:",
	MsgSubmit:          "Realizar Predicción",
	MsgResultHeading:   "Resultado de la Predicción:",
	MsgModelUsed:       "Modelo utilizado: %s",
	MsgHighRisk:        "Alto Riesgo",
	MsgLowRisk:         "Bajo Riesgo",
	MsgMissingArtifact: "El archivo del modelo %q no se encontró. Asegúrate de que esté en la misma carpeta que el servicio.",
	MsgLoadFailed:      "Ocurrió un error al cargar el modelo: %v",
	MsgSchema:          "Las variables del modelo no se cargaron correctamente.",
	MsgUnknownModel:    "Modelo no reconocido",
	MsgPrediction:      "Ocurrió un error durante la predicción: %v",
	MsgInvalidInput:    "Entrada no válida: %v",
	MsgBusy:            "Ya hay una predicción en curso, espera a que termine.",
	MsgCanceled:        "La solicitud fue cancelada.",
}

var (
	supported = []language.Tag{language.English, language.Spanish}
	matcher   = language.NewMatcher(supported)
)

func init() {
	for key, translation := range spanish {
		if err := message.SetString(language.Spanish, key, translation); err != nil {
			panic(fmt.Sprintf("register %q: %v", key, err))
		}
	}
}

// MatchLanguage picks a supported language from an Accept-Language header,
// then from fallback, then English.
func MatchLanguage(acceptLanguage, fallback string) language.Tag {
	if tags, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil && len(tags) > 0 {
		if _, index, confidence := matcher.Match(tags...); confidence != language.No {
			return supported[index]
		}
	}
	if tag, err := language.Parse(fallback); err == nil {
		if _, index, confidence := matcher.Match(tag); confidence != language.No {
			return supported[index]
		}
	}
	return language.English
}

type Localizer struct {
	tag     language.Tag
	printer *message.Printer
}

func NewLocalizer(tag language.Tag) *Localizer {
	return &Localizer{tag: tag, printer: message.NewPrinter(tag)}
}

func (l *Localizer) Tag() language.Tag {
	return l.tag
}

func (l *Localizer) T(key string, args ...interface{}) string {
	return l.printer.Sprintf(key, args...)
}

func (l *Localizer) RiskLabel(risk ml.RiskLevel) string {
	if risk == ml.RiskHigh {
		return l.T(MsgHighRisk)
	}
	return l.T(MsgLowRisk)
}

// Describe turns an error from a submission into the message shown to the user.
func (l *Localizer) Describe(err error, artifact string) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ml.ErrMissingArtifact):
		return l.T(MsgMissingArtifact, artifact)
	case errors.Is(err, ml.ErrDeserialization):
		return l.T(MsgLoadFailed, err)
	case errors.Is(err, ml.ErrSchemaInconsistency):
		return l.T(MsgSchema)
	case errors.Is(err, ml.ErrUnknownModel):
		return l.T(MsgUnknownModel)
	case errors.Is(err, ml.ErrPrediction):
		return l.T(MsgPrediction, err)
	case errors.Is(err, ml.ErrInvalidInput):
		return l.T(MsgInvalidInput, err)
	case errors.Is(err, ErrBusy):
		return l.T(MsgBusy)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return l.T(MsgCanceled)
	default:
		return err.Error()
	}
}
