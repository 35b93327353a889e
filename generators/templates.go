// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

// Package generators turns a backend configuration and an architecture
// design into a complete generated project tree. LLM-authored files come
// from the framework agents; deterministic scaffolding (Dockerfile,
// compose file, CI workflow, manifests) is rendered from templates.
package generators

import (
	"bytes"
	"fmt"
	"text/template"

	"genesis/backend/config"
)

// TemplateEngine renders the static scaffolding files. Templates are
// parsed once at construction; Render failures after that indicate bad
// data, not bad templates.
type TemplateEngine struct {
	templates *template.Template
}

// NewTemplateEngine parses the built-in scaffolding templates.
func NewTemplateEngine() *TemplateEngine {
	t := template.New("scaffolding")
	for name, body := range scaffoldingTemplates {
		template.Must(t.New(name).Parse(body))
	}
	return &TemplateEngine{templates: t}
}

// Render executes the named template with the given data.
func (e *TemplateEngine) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.String(), nil
}

// templateData is the view passed to every scaffolding template.
type templateData struct {
	ProjectName string
	Description string
	Framework   string
	Language    string
	Version     string
	APIVersion  string
	Features    []string
	Database    string
	HasAuth     bool
	Port        int
}

func newTemplateData(cfg config.BackendConfig) templateData {
	data := templateData{
		ProjectName: cfg.ProjectName,
		Description: cfg.Description,
		Framework:   string(cfg.Framework),
		Language:    cfg.Language(),
		Version:     cfg.Version,
		APIVersion:  cfg.APIVersion,
		Features:    cfg.Features,
		HasAuth:     cfg.Auth != nil,
		Port:        frameworkPort(cfg.Framework),
	}
	if cfg.Database != nil {
		data.Database = string(cfg.Database.Type)
	}
	return data
}

func frameworkPort(f config.Framework) int {
	switch f {
	case config.FrameworkNestJS, config.FrameworkExpress:
		return 3000
	default:
		return 8000
	}
}

// CommonFiles renders the scaffolding every generated project gets,
// regardless of framework.
func (e *TemplateEngine) CommonFiles(cfg config.BackendConfig) (map[string]string, error) {
	data := newTemplateData(cfg)

	files := make(map[string]string)
	for path, name := range map[string]string{
		".gitignore":                "gitignore",
		"Dockerfile":                "dockerfile_" + data.Language,
		"docker-compose.yml":        "docker_compose",
		"README.md":                 "readme",
		".github/workflows/ci.yml":  "ci_workflow",
		".env.example":              "env_example",
		manifestPath(cfg.Framework): "manifest_" + string(cfg.Framework),
	} {
		content, err := e.Render(name, data)
		if err != nil {
			return nil, err
		}
		files[path] = content
	}

	return files, nil
}

func manifestPath(f config.Framework) string {
	switch f {
	case config.FrameworkNestJS, config.FrameworkExpress:
		return "package.json"
	default:
		return "requirements.txt"
	}
}

var scaffoldingTemplates = map[string]string{
	"gitignore": `__pycache__/
*.py[cod]
.env
.venv/
venv/
node_modules/
dist/
.coverage
htmlcov/
*.log
.DS_Store
`,

	"dockerfile_python": `FROM python:3.12-slim

WORKDIR /app

COPY requirements.txt .
RUN pip install --no-cache-dir -r requirements.txt

COPY . .

EXPOSE {{.Port}}

{{if eq .Framework "django" -}}
CMD ["gunicorn", "config.wsgi:application", "--bind", "0.0.0.0:{{.Port}}"]
{{- else -}}
CMD ["uvicorn", "app.main:app", "--host", "0.0.0.0", "--port", "{{.Port}}"]
{{- end}}
`,

	"dockerfile_typescript": `FROM node:20-alpine AS build

WORKDIR /app

COPY package*.json ./
RUN npm ci

COPY . .
RUN npm run build

FROM node:20-alpine

WORKDIR /app

COPY --from=build /app/dist ./dist
COPY --from=build /app/node_modules ./node_modules

EXPOSE {{.Port}}

CMD ["node", "dist/main.js"]
`,

	"dockerfile_javascript": `FROM node:20-alpine

WORKDIR /app

COPY package*.json ./
RUN npm ci --omit=dev

COPY . .

EXPOSE {{.Port}}

CMD ["node", "src/index.js"]
`,

	"docker_compose": `services:
  app:
    build: .
    ports:
      - "{{.Port}}:{{.Port}}"
    env_file: .env
    depends_on:
{{- if eq .Database "postgresql"}}
      postgres:
        condition: service_healthy
{{- else if eq .Database "mysql"}}
      mysql:
        condition: service_healthy
{{- else if eq .Database "mongodb"}}
      mongodb:
        condition: service_healthy
{{- else}}
      postgres:
        condition: service_healthy
{{- end}}

  postgres:
    image: postgres:16-alpine
    environment:
      POSTGRES_USER: {{.ProjectName}}
      POSTGRES_PASSWORD: {{.ProjectName}}
      POSTGRES_DB: {{.ProjectName}}
    ports:
      - "5432:5432"
    volumes:
      - postgres_data:/var/lib/postgresql/data
    healthcheck:
      test: ["CMD-SHELL", "pg_isready -U {{.ProjectName}}"]
      interval: 5s
      timeout: 3s
      retries: 10
{{if eq .Database "mysql"}}
  mysql:
    image: mysql:8.4
    environment:
      MYSQL_ROOT_PASSWORD: {{.ProjectName}}
      MYSQL_DATABASE: {{.ProjectName}}
    ports:
      - "3306:3306"
    volumes:
      - mysql_data:/var/lib/mysql
    healthcheck:
      test: ["CMD", "mysqladmin", "ping", "-h", "localhost"]
      interval: 5s
      timeout: 3s
      retries: 10
{{end}}{{if eq .Database "mongodb"}}
  mongodb:
    image: mongo:7
    ports:
      - "27017:27017"
    volumes:
      - mongo_data:/data/db
    healthcheck:
      test: ["CMD", "mongosh", "--eval", "db.adminCommand('ping')"]
      interval: 5s
      timeout: 3s
      retries: 10
{{end}}
  redis:
    image: redis:7-alpine
    ports:
      - "6379:6379"
    healthcheck:
      test: ["CMD", "redis-cli", "ping"]
      interval: 5s
      timeout: 3s
      retries: 10

volumes:
  postgres_data:
{{- if eq .Database "mysql"}}
  mysql_data:
{{- end}}
{{- if eq .Database "mongodb"}}
  mongo_data:
{{- end}}
`,

	"readme": `# {{.ProjectName}}

{{.Description}}

Generated {{.Framework}} backend, API version {{.APIVersion}}.

## Features
{{range .Features}}
- {{.}}
{{- end}}

## Running

` + "```" + `
docker compose up --build
` + "```" + `

The API listens on port {{.Port}}.
`,

	"ci_workflow": `name: ci

on:
  push:
    branches: [main]
  pull_request:

jobs:
  test:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
{{- if eq .Language "python"}}
      - uses: actions/setup-python@v5
        with:
          python-version: "3.12"
      - run: pip install -r requirements.txt
      - run: pytest
{{- else}}
      - uses: actions/setup-node@v4
        with:
          node-version: "20"
      - run: npm ci
      - run: npm test
{{- end}}
`,

	"env_example": `# {{.ProjectName}} environment
DEBUG=false
{{- if .Database}}
DATABASE_URL=change-me
{{- end}}
{{- if .HasAuth}}
SECRET_KEY=change-me
{{- end}}
REDIS_URL=redis://localhost:6379/0
`,

	"manifest_fastapi": `fastapi>=0.110
uvicorn[standard]>=0.29
pydantic>=2.6
pydantic-settings>=2.2
{{- if eq .Database "postgresql"}}
sqlalchemy>=2.0
psycopg2-binary>=2.9
alembic>=1.13
{{- else if eq .Database "mysql"}}
sqlalchemy>=2.0
pymysql>=1.1
alembic>=1.13
{{- else if eq .Database "mongodb"}}
motor>=3.4
{{- end}}
{{- if .HasAuth}}
python-jose[cryptography]>=3.3
passlib[bcrypt]>=1.7
{{- end}}
redis>=5.0
pytest>=8.0
httpx>=0.27
`,

	"manifest_django": `django>=5.0
djangorestframework>=3.15
{{- if eq .Database "postgresql"}}
psycopg2-binary>=2.9
{{- else if eq .Database "mysql"}}
mysqlclient>=2.2
{{- end}}
{{- if .HasAuth}}
djangorestframework-simplejwt>=5.3
{{- end}}
django-redis>=5.4
gunicorn>=22.0
pytest-django>=4.8
`,

	"manifest_nestjs": `{
  "name": "{{.ProjectName}}",
  "version": "{{.Version}}",
  "description": "{{.Description}}",
  "scripts": {
    "build": "nest build",
    "start": "nest start",
    "start:dev": "nest start --watch",
    "test": "jest"
  },
  "dependencies": {
    "@nestjs/common": "^10.0.0",
    "@nestjs/core": "^10.0.0",
    "@nestjs/config": "^3.2.0",
    "@nestjs/platform-express": "^10.0.0",
    "@nestjs/typeorm": "^10.0.0",
    "typeorm": "^0.3.20",
    "class-validator": "^0.14.0",
    "class-transformer": "^0.5.1",
    "reflect-metadata": "^0.2.0",
    "rxjs": "^7.8.0"
  },
  "devDependencies": {
    "@nestjs/cli": "^10.0.0",
    "@nestjs/testing": "^10.0.0",
    "jest": "^29.7.0",
    "typescript": "^5.4.0"
  }
}
`,

	"manifest_express": `{
  "name": "{{.ProjectName}}",
  "version": "{{.Version}}",
  "description": "{{.Description}}",
  "scripts": {
    "start": "node src/index.js",
    "test": "jest"
  },
  "dependencies": {
    "express": "^4.19.0",
    "helmet": "^7.1.0",
    "cors": "^2.8.5",
    "dotenv": "^16.4.0"
  },
  "devDependencies": {
    "jest": "^29.7.0",
    "supertest": "^7.0.0"
  }
}
`,
}
